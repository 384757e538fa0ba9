// Package cache stores speaker conditioning latents computed by the XTTS
// server so a reference voice is only analysed once. It layers an in-memory
// LRU (L1) over a zstd-compressed disk cache (L2) that survives restarts and
// is shared between processes.
package cache
