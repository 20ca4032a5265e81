// Package ledger implements the "dledger ledger" command group. Every subcommand talks
// to a running server through the RPC client; the ledger is selected with --handle.
//
// Batches are given as JSON lists of [kind, key, category, template, amount] tuples:
//
//	dledger ledger do '[[2,"sword",0,0,1],[1,"shield",2,200,1]]' --handle 1
package ledger
