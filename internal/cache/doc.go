// Package cache defines the disk-backed store for compiled stylesheets. Every
// entry is a single flat file named <prefix><fingerprint><suffix> inside the
// cache directory; the directory listing is the only index. Writes go through a
// temp file + rename so readers never observe partial output, reads treat a
// vanished file as a miss, and Sweep removes entries by age (or all of them on a
// forced reset) while skipping anything it cannot delete. No locks are taken:
// content for a fingerprint is deterministic, so racing writers are harmless.
package cache
