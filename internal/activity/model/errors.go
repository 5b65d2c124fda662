package model

import "errors"

var (
	// ErrRepositoryNotFound indicates that the requested repository is not registered.
	ErrRepositoryNotFound = errors.New("repository not found")
	// ErrRepositoryExists indicates that a repository with the given ID is already registered.
	ErrRepositoryExists = errors.New("repository already exists")
	// ErrSprintNotFound indicates that the requested sprint does not exist.
	ErrSprintNotFound = errors.New("sprint not found")
	// ErrLeaseHeld indicates that a valid sync lease is held by another owner.
	ErrLeaseHeld = errors.New("sync lease already held")
	// ErrCacheMiss indicates that no valid cache record exists for the key.
	ErrCacheMiss = errors.New("cache record not found or expired")
	// ErrBotUserExists indicates that the bot username is already registered.
	ErrBotUserExists = errors.New("bot user already exists")
	// ErrInvalidDateRange indicates that the requested window is malformed.
	ErrInvalidDateRange = errors.New("start date must not be after end date")
)
