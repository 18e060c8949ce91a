// Package archive implements the tiered campaign-save archive.
//
// Every campaign has at most one "current" snapshot in the hot tier and up to
// MaxGenerations-1 historical snapshots in the cold tier. Saving demotes the
// displaced current snapshot into the cold archive (compressed, tagged with
// its own creation timestamp) and enforces the retention bound by evicting
// the oldest entries first.
//
// Archival hygiene is deliberately best-effort: a save that cannot finish
// demoting or pruning old history still writes the player's new progress.
// Those non-fatal failures travel through the SaveReport and the optional
// Reporter so the calling layer can surface a degraded-history warning.
//
// Concurrent saves for the same campaign are not serialized here; the hot
// slot is last-writer-wins, which matches the single-player-per-campaign use
// case of the surrounding game.
package archive
