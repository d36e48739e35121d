package model

// Package model defines domain data structures shared across the service:
// download jobs, status enums, and resolved media metadata. Structures are
// designed for direct JSON serialization in API responses and explicit
// state transitions.
