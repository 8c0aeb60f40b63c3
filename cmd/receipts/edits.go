package main

import (
	"fmt"
	"strconv"

	"github.com/peterbourgon/ff/v4"

	"github.com/zombor/receipt-ledger/internal/ingest"
)

// optional is a string flag that remembers whether it was given
type optional struct {
	value string
	set   bool
}

func (o *optional) Set(s string) error {
	o.value, o.set = s, true
	return nil
}

func (o *optional) String() string { return o.value }

// editFlags are the field overrides shared by ingest, add and update
type editFlags struct {
	vendor      optional
	amount      optional
	category    optional
	description optional
	date        optional
	recurring   optional
}

func registerEdits(fs *ff.FlagSet) *editFlags {
	e := &editFlags{}
	fs.ValueLong("vendor", &e.vendor, "vendor name (empty clears)")
	fs.ValueLong("amount", &e.amount, "amount, e.g. 12.50")
	fs.ValueLong("category", &e.category, "category (empty clears)")
	fs.ValueLong("description", &e.description, "description (empty clears)")
	fs.ValueLong("date", &e.date, "date as YYYY-MM-DD (empty clears)")
	fs.ValueLong("recurring", &e.recurring, "true or false")
	return e
}

func (e *editFlags) changed() bool {
	return e.vendor.set || e.amount.set || e.category.set || e.description.set || e.date.set || e.recurring.set
}

// apply writes the given flags into the review session
func (e *editFlags) apply(rs *ingest.ReviewSession) error {
	if e.vendor.set {
		rs.SetVendor(e.vendor.value)
	}
	if e.category.set {
		rs.SetCategory(e.category.value)
	}
	if e.description.set {
		rs.SetDescription(e.description.value)
	}
	if e.date.set {
		if err := rs.SetDate(e.date.value); err != nil {
			return err
		}
	}
	if e.amount.set {
		if err := rs.SetAmount(e.amount.value); err != nil {
			return fmt.Errorf("--amount: %w", err)
		}
	}
	if e.recurring.set {
		v, err := strconv.ParseBool(e.recurring.value)
		if err != nil {
			return fmt.Errorf("--recurring: %w", err)
		}
		rs.SetRecurring(v)
	}
	return nil
}
