// Package policy stores named assembly strategies and resolves them into
// immutable per-request snapshots. A policy bundles the effective bucket
// configuration with a drop order and head/middle/tail placement groups;
// request-time overrides adjust a copy, never the registered original.
package policy
