package slot

import (
	"sync"
	"time"
	_ "time/tzdata" // Europe/Paris must resolve on hosts without zoneinfo.

	"github.com/goodsign/monday"
)

const (
	displayLayout = "Monday 02 Jan 15h"
	updatedLayout = "Mon 02/01 15h04"
)

var paris = sync.OnceValue(func() *time.Location {
	loc, err := time.LoadLocation("Europe/Paris")
	if err != nil {
		return time.FixedZone("CET", 3600)
	}
	return loc
})

// Paris returns the Europe/Paris location used for display and placeholders.
func Paris() *time.Location {
	return paris()
}

// DisplayText formats a slot instant for page headers, e.g. "vendredi 10 mai 11h".
func DisplayText(t time.Time, loc *time.Location) string {
	return monday.Format(t.In(loc), displayLayout, monday.LocaleFrFR)
}

// UpdatedText formats a forecast update time, e.g. "ven. 10/05 11h30".
func UpdatedText(t time.Time, loc *time.Location) string {
	return monday.Format(t.In(loc), updatedLayout, monday.LocaleFrFR)
}
