/*
Package gas encapsulates one transaction's gas accounting: smashing
multiple gas coins into a single logical coin, metering storage cost and
rebate as the temporary store accumulates writes and deletes, recovering
from an out-of-gas condition without losing forward progress, and
finalizing a GasCostSummary.
*/
package gas
