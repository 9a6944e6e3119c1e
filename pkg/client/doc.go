// Package client is the BhulekhChain bridge Go SDK.
//
// It covers the full bridge API surface: institution login, the property
// mirror, the encumbrance lifecycle, the per-property audit chain, and
// public-chain anchor management.
//
// # Logging in
//
// Most write operations require a role-scoped session token. Login caches
// it on the client so every later call carries it automatically:
//
//	c, err := client.New("https://bridge.bhulekh.example")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if _, err := c.Login(ctx, "SBIN", secret); err != nil {
//	    log.Fatal(err)
//	}
//
// A pre-obtained token can be attached instead with WithBearerToken.
//
// # Encumbrance lifecycle
//
//	enc, sync, err := c.AddEncumbrance(ctx, client.AddEncumbranceRequest{
//	    PropertyID:       "AP-GNT-TNL-SKM-142-3",
//	    Type:             "MORTGAGE",
//	    InstitutionName:  "State Bank of India",
//	    SanctionedAmount: 250_000_000, // paisa
//	})
//
// Check sync.Synced: false means the permissioned ledger was unreachable
// and the row was recorded mirror-only, to be reconciled later.
//
//	released, err := c.ReleaseEncumbrance(ctx, enc.EncumbranceID)
//
// # Anchors
//
// SubmitAnchor is idempotent per (state, block range) — resubmitting a
// covered range returns the existing record with ErrAlreadyAnchored:
//
//	rec, err := c.SubmitAnchor(ctx, "AP", "land-registry-channel", 0, 500)
//	if errors.Is(err, client.ErrAlreadyAnchored) {
//	    // rec is the anchor that already covers the range
//	}
//
// After a confirmation timeout, settle the submission before retrying:
//
//	rec, err := c.ResolveAnchor(ctx, "AP", "land-registry-channel", 0, 500, chainTxID)
//	// rec == nil means the transaction never landed; resubmission is safe.
//
// # Audit trail
//
//	entries, _ := c.AuditTrail(ctx, propertyID)
//	valid, _ := c.VerifyAuditTrail(ctx, propertyID)
package client
