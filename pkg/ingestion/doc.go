/*
Package ingestion pulls checkpoints from a Source, fetches ahead up to a
bounded window, reorders completed fetches back into sequence order, and
fans them out to subscribers.

# Windowing

The regulator never has more than concurrency fetches in flight at once,
and never fetches further ahead of the slowest subscriber's reported
watermark than bufferSize allows. A subscriber that reports no watermark
imposes no cap beyond bufferSize itself.

# Shutdown

A subscriber that closes its delivery channel, or a panic recovered from
a fetch task, ends the regulator's run: the former is treated as a
graceful stop and published as an ingestion.shutdown event; the latter
is re-raised after the in-flight fetch group is cancelled.
*/
package ingestion
