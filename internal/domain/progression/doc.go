// Package progression holds the pure rules that turn practice into progress:
//
//   - XPPolicy converts one practice session into an XP amount. The formula is
//     deterministic and monotonic: longer sessions never earn less, a higher
//     sentiment score never earns less, and detected improvement only adds.
//   - LevelTable maps cumulative XP to a level through a strictly increasing
//     threshold table (level 1 starts at 0 XP).
//   - StreakEngine advances a daily streak from the last practice date to the
//     date of a new session, spending streak shields to cover missed days.
//   - ShieldPolicy prices streak shields in gems and enforces the inventory cap.
//
// Nothing in this package performs I/O. Callers load the current state, ask
// these types for the outcome and persist it through the stats store.
package progression
