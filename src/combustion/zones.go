package combustion

import "math"

// Zones is the primary air distribution across the grate.
// Zone1..Zone3 are percentages of total primary air and always sum to 100.
// Sub1..Sub3 are the share of each zone going to the first roller of its pair.
type Zones struct {
	Zone1 float64 `json:"zone1" toml:"zone1"`
	Zone2 float64 `json:"zone2" toml:"zone2"`
	Zone3 float64 `json:"zone3" toml:"zone3"`
	Sub1  float64 `json:"sub_zone1" toml:"sub_zone1"`
	Sub2  float64 `json:"sub_zone2" toml:"sub_zone2"`
	Sub3  float64 `json:"sub_zone3" toml:"sub_zone3"`
}

// ZoneLocks marks zones that are held fixed while another zone is adjusted
type ZoneLocks [3]bool

// DefaultZones returns the plant's usual distribution
func DefaultZones() Zones {
	return Zones{Zone1: 61, Zone2: 19, Zone3: 20, Sub1: 40, Sub2: 60, Sub3: 70}
}

// DefaultLocks holds zone 3 as the pivot
func DefaultLocks() ZoneLocks {
	return ZoneLocks{false, false, true}
}

// Zone returns the flow percentage of zone id (1-3)
func (z Zones) Zone(id int) float64 {
	switch id {
	case 1:
		return z.Zone1
	case 2:
		return z.Zone2
	case 3:
		return z.Zone3
	}
	return 0
}

func (z *Zones) setZone(id int, v float64) {
	switch id {
	case 1:
		z.Zone1 = v
	case 2:
		z.Zone2 = v
	case 3:
		z.Zone3 = v
	}
}

// Sub returns the split of zone id (1-3)
func (z Zones) Sub(id int) float64 {
	switch id {
	case 1:
		return z.Sub1
	case 2:
		return z.Sub2
	case 3:
		return z.Sub3
	}
	return 0
}

// Total is the sum of the three zone percentages
func (z Zones) Total() float64 {
	return z.Zone1 + z.Zone2 + z.Zone3
}

// UpdateZone sets zone id to value and redistributes the remainder so the total stays 100.
// A locked other zone is held fixed and the free one absorbs the change. With no other zone locked,
// the remainder is shared between them in proportion to their current values.
// Requests on a locked zone, or when both other zones are locked, leave the zones unchanged.
func UpdateZone(z Zones, locks ZoneLocks, id int, value float64) Zones {
	if id < 1 || id > 3 || locks[id-1] {
		return z
	}

	a, b := otherZones(id)
	lockedA, lockedB := locks[a-1], locks[b-1]
	if lockedA && lockedB {
		return z
	}

	switch {
	case lockedA || lockedB:
		fixed, flex := a, b
		if lockedB {
			fixed, flex = b, a
		}
		fixedValue := z.Zone(fixed)
		v := clamp(value, 0, 100-fixedValue)
		z.setZone(id, v)
		z.setZone(flex, 100-fixedValue-v)

	default:
		v := clamp(value, 0, 100)
		remaining := 100 - v
		va, vb := z.Zone(a), z.Zone(b)
		var na float64
		if va+vb > 0 {
			na = remaining * va / (va + vb)
		} else {
			na = remaining / 2
		}
		z.setZone(id, v)
		z.setZone(a, na)
		z.setZone(b, remaining-na)
	}
	return z
}

// UpdateSub sets the split of zone id, clamped to 0-100
func UpdateSub(z Zones, id int, value float64) Zones {
	v := clamp(value, 0, 100)
	switch id {
	case 1:
		z.Sub1 = v
	case 2:
		z.Sub2 = v
	case 3:
		z.Sub3 = v
	}
	return z
}

// SetLock changes the lock on zone id. Locking the last unlocked zone is refused.
func SetLock(locks ZoneLocks, id int, locked bool) (ZoneLocks, bool) {
	if id < 1 || id > 3 {
		return locks, false
	}
	next := locks
	next[id-1] = locked
	if next[0] && next[1] && next[2] {
		return locks, false
	}
	return next, true
}

// Normalize clamps every field and rescales zones that do not sum to 100.
// Used when zones arrive from outside the update protocol (saved configs, scenario files).
func (z Zones) Normalize() Zones {
	z.Zone1 = clamp(z.Zone1, 0, 100)
	z.Zone2 = clamp(z.Zone2, 0, 100)
	z.Zone3 = clamp(z.Zone3, 0, 100)
	z.Sub1 = clamp(z.Sub1, 0, 100)
	z.Sub2 = clamp(z.Sub2, 0, 100)
	z.Sub3 = clamp(z.Sub3, 0, 100)

	total := z.Total()
	if total <= 0 {
		d := DefaultZones()
		z.Zone1, z.Zone2, z.Zone3 = d.Zone1, d.Zone2, d.Zone3
		return z
	}
	if total != 100 {
		z.Zone1 = z.Zone1 * 100 / total
		z.Zone2 = z.Zone2 * 100 / total
		z.Zone3 = 100 - z.Zone1 - z.Zone2
	}
	return z
}

func otherZones(id int) (int, int) {
	switch id {
	case 1:
		return 2, 3
	case 2:
		return 1, 3
	default:
		return 1, 2
	}
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
