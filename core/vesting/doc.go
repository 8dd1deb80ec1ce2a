// Package vesting implements the hybrid cliff + milestone + linear vesting
// engine. BuildSchedule divides the milestone-eligible share of each category
// into equal pools, and Simulate projects month by month how those pools and
// the tail portion vest. Both are pure functions of the totals and the Config
// the Engine was built with.
package vesting
