// Package hebdate wraps the hebcal hdate package with the conversion rules
// this service needs: anniversary dates are carried as Hebrew (day, month,
// year) triples and materialized into Gregorian dates one target year at a
// time. Month numbering follows hdate (Nisan=1 .. Adar I=12, Adar II=13).
package hebdate

import (
	"fmt"
	"time"

	"github.com/hebcal/hebcal-go/hdate"
)

// Date is a Hebrew calendar date.
type Date struct {
	Day   int
	Month int
	Year  int
}

// String renders the date as "15 Nisan 5784".
func (d Date) String() string {
	return fmt.Sprintf("%d %s %d", d.Day, MonthName(d.Month, d.Year), d.Year)
}

// FromTime converts a Gregorian instant to its Hebrew calendar date.
func FromTime(t time.Time) Date {
	hd := hdate.FromTime(t)
	return Date{Day: hd.Day(), Month: int(hd.Month()), Year: hd.Year()}
}

// CurrentYear returns the Hebrew year containing the given instant.
func CurrentYear(now time.Time) int {
	return hdate.FromTime(now).Year()
}

// IsLeapYear reports whether the Hebrew year has an Adar II.
func IsLeapYear(year int) bool {
	return hdate.IsLeapYear(year)
}

// DaysInMonth returns the length of the given month in the given year.
func DaysInMonth(month, year int) int {
	return hdate.DaysInMonth(hdate.HMonth(month), year)
}

// MonthName returns the transliterated month name. The year disambiguates
// Adar: month 12 is "Adar" in a common year and "Adar I" in a leap year.
func MonthName(month, year int) string {
	if month == int(hdate.Adar1) && !hdate.IsLeapYear(year) {
		return "Adar"
	}
	return hdate.HMonth(month).String()
}

// Validate checks that the triple names a real Hebrew calendar date.
func Validate(day, month, year int) error {
	if year < 1 {
		return fmt.Errorf("hebrew year %d out of range", year)
	}
	if month < 1 || month > hdate.MonthsInYear(year) {
		return fmt.Errorf("hebrew month %d does not exist in year %d", month, year)
	}
	if day < 1 || day > hdate.DaysInMonth(hdate.HMonth(month), year) {
		return fmt.Errorf("hebrew day %d does not exist in %s %d", day, MonthName(month, year), year)
	}
	return nil
}

// anniversaryInYear maps an anchor (day, month) into the target year.
// An Adar II anchor falls back to Adar (I) in common years, and a day past
// the end of a variable-length month (30 Cheshvan, 30 Kislev, 30 Adar I)
// clamps to the month's last day.
func anniversaryInYear(day, month, year int) (int, hdate.HMonth) {
	m := hdate.HMonth(month)
	if m == hdate.Adar2 && !hdate.IsLeapYear(year) {
		m = hdate.Adar1
	}
	if max := hdate.DaysInMonth(m, year); day > max {
		day = max
	}
	return day, m
}

// AnniversaryDate returns the Hebrew date the anniversary of (day, month)
// actually falls on in the target year, after leap-month fallback and
// day clamping.
func AnniversaryDate(day, month, year int) Date {
	d, m := anniversaryInYear(day, month, year)
	return Date{Day: d, Month: int(m), Year: year}
}

// ToGregorian returns the Gregorian date (UTC midnight) of the anniversary
// of (day, month) in the target Hebrew year.
func ToGregorian(day, month, year int) (time.Time, error) {
	if err := Validate(1, 1, year); err != nil {
		return time.Time{}, err
	}
	if month < 1 || month > int(hdate.Adar2) {
		return time.Time{}, fmt.Errorf("hebrew month %d out of range", month)
	}
	if day < 1 || day > 30 {
		return time.Time{}, fmt.Errorf("hebrew day %d out of range", day)
	}
	d, m := anniversaryInYear(day, month, year)
	gy, gm, gd := hdate.New(year, m, d).Greg()
	return time.Date(gy, gm, gd, 0, 0, 0, 0, time.UTC), nil
}
