// Package fdwledger records per-connector usage counters and a free-form
// metadata document for foreign data wrappers, in a stats table owned by
// the wrappers extension.
//
// Each connector owns one row keyed by its name. Counters are created lazily
// and only ever grow; concurrent increments from many sessions never lose
// updates because every increment is a single atomic upsert.
//
// # Quick Start
//
//	import (
//	    "github.com/xraph/fdwledger"
//	    "github.com/xraph/fdwledger/store/pgxstore"
//	)
//
//	s := pgxstore.New(pool)
//	l := fdwledger.New(s)
//	if err := l.Start(ctx); err != nil {
//	    log.Fatal(err) // extension or stats table missing
//	}
//	defer l.Stop()
//
//	if err := l.Inc(ctx, "stripe", fdwledger.RowsIn, 42); err != nil {
//	    return err // fatal: abort the scan
//	}
//
// # Failure policy
//
// Counter writes are fatal: any error from Inc aborts the caller. Metadata
// is best effort. A failed write is logged as a warning and a failed read
// is reported as "no metadata". A missing extension or stats table is always
// returned, see IsDeploymentError.
//
// Inside a read-only transaction Inc and SetMetadata do nothing. When the
// transaction mode cannot be determined the ledger assumes it is writable.
//
// # Transactions
//
// To run the ledger statements inside the caller's transaction, bind a store
// to it and derive a ledger:
//
//	tl := l.WithStore(pgxstore.New(pool).WithTx(tx))
//	_ = tl.Inc(ctx, "stripe", fdwledger.CreateTimes, 1)
package fdwledger
