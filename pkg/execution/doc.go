/*
Package execution implements the per-transaction workspace a Move-style
runtime mutates through the Storage capability, and the terminal
transformations that turn it into a TransactionEffects: ensuring every
mutable input advances, charging gas for the net storage delta, and
partitioning writes and deletes into the effects buckets.
*/
package execution
