// Package license implements the license-key resolution and tenant
// activation core: mapping an opaque code to the tenant it activates,
// and driving the Inactive -> Active transition as a two-step saga with
// an idempotent replay rule.
//
// The two records of truth for a code are searched in a fixed order:
// tenant rows first (historical codes are embedded there), then the
// independently minted key ledger. The primary source always wins so the
// same code can never yield divergent answers.
package license
