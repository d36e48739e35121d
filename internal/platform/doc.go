package platform

// Package platform provides filesystem helpers shared by the download
// pipeline and the HTTP layer: directory creation, filename sanitization,
// and artifact path containment checks.
