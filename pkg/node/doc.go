/*
Package node wires every consensus and execution component into a single
runnable process: one shared bbolt database, the DAG committer and its
leader schedule, the commit log, the object cache and its backing store,
the gas charger, the state accumulator, and the ingestion regulator.

Node plays the role the teacher's pkg/manager.Manager plays for a
raft-backed cluster: New opens storage, Start launches the background
loops, and Stop shuts them down and closes the database. Unlike Manager,
there is no cluster membership or leader election over nodes themselves — Node is
one authority's local view of the shared DAG.

Execute is the one place the temporary store and gas charger actually
run: it builds both fresh for a single Transaction, drives it against
the object cache, and stages and commits the resulting outputs at a
caller-supplied commit index.
*/
package node
