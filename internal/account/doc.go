// Package account registers users and verifies their passwords.
//
// Users live in the users table. Lookups scan the whole table; the
// username uniqueness check runs before the insert and is not atomic.
package account
