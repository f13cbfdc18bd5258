/*
Package committer decides, wave by wave, which leader block becomes the
next commit and linearizes each newly-committed leader's causal history
into a chained, deterministically-ordered block sequence.

A wave spans waveLength rounds: the leader round, one or more voting
rounds, and a decision round. TryDirectDecide resolves a wave purely from
the DAG shape once its decision round has quorum-certified either the
leader or its absence. TryIndirectDecide falls back to inheriting a
decision from the nearest higher wave that direct-decide already
resolved, walking that wave's causal history for the leader slot.
*/
package committer
