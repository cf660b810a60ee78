package services

import "errors"

var (
	// ErrUpstreamFetch means a read the computation depends on failed; nothing was written.
	ErrUpstreamFetch  = errors.New("upstream fetch failed")
	// ErrPersistence means an insert or update against the store failed.
	ErrPersistence    = errors.New("persistence failed")
	// ErrReconciliation marks a per-user failure inside a bulk reconcile pass.
	ErrReconciliation = errors.New("reconciliation failed")
	// ErrNonPositiveXP is raised in fail-fast imports when scoring produced no XP.
	ErrNonPositiveXP  = errors.New("computed xp is not positive")

	ErrUserNotFound         = errors.New("user not found")
	ErrRunNotFound          = errors.New("run not found")
	ErrNotificationNotFound = errors.New("notification not found")
	ErrStravaNotConnected   = errors.New("strava account not connected")
)
