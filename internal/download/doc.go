package download

// Package download implements the asynchronous job pipeline built on top of
// yt-dlp. Submit accepts a URL, records a pending job, and spawns one runner
// goroutine that drives the resolver and reports progress and the terminal
// outcome into the job store. Parallelism is capped by a semaphore; jobs
// beyond the cap stay pending until a slot frees up.
