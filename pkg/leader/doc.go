/*
Package leader picks, per round, which authority is expected to lead, and
tracks a reputation-weighted swap table that routes around authorities
whose blocks have recently been absent from committed sub-DAGs.

ElectionStrategy is the pluggable base schedule (round-robin for tests,
stake-weighted for production); LeaderSwapTable and AtomicSwapTable layer
a lock-free, periodically-rebuilt override on top of it.
*/
package leader
