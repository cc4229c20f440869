// Package query filters and orders rows returned by store scans.
//
// Every read in the application is a full table scan followed by the
// predicates here, so cost is linear in table size. Timestamps compare as
// strings, which is only valid for values written with store.TimestampLayout.
package query
