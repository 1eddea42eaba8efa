// Package tracker implements the last-seen tracking pass: it scrapes the
// server homepage for online guild members, folds the observation into the
// persisted state, and emits the daily summary through a Notifier.
package tracker
