// Package chat implements direct messaging between pairs of users.
//
// A conversation stores its two participants in sorted order so a pair maps
// to one conversation regardless of who starts it. Each participant has at
// most one read marker per conversation holding the created_at of the last
// message they have seen. A conversation is unread for a user when another
// participant wrote and either no marker exists or a message is newer than it.
//
// All reads are full table scans; nothing is cached between calls.
package chat
