package pseudonym

import "fmt"

// pools holds the fixed, finite generator values per entity type. Values
// are assigned in order of first occurrence, which keeps generation fully
// deterministic for a given sequence of inputs.
var pools = map[string][]string{
	"name": {
		"Jordan Avery", "Casey Morgan", "Riley Quinn", "Taylor Brooks",
		"Avery Hayes", "Morgan Ellis", "Quinn Parker", "Reese Campbell",
		"Rowan Mitchell", "Skyler Bennett", "Emerson Drake", "Finley Hart",
	},
	"email": {
		"jordan.avery@example.com", "casey.morgan@example.com",
		"riley.quinn@example.com", "taylor.brooks@example.com",
		"avery.hayes@example.com", "morgan.ellis@example.com",
		"quinn.parker@example.com", "reese.campbell@example.com",
	},
	"phone": {
		"555-0100", "555-0101", "555-0102", "555-0103",
		"555-0104", "555-0105", "555-0106", "555-0107",
	},
	// 900-999 area numbers are never issued, so these can't collide with
	// a real SSN.
	"ssn": {
		"900-00-0001", "900-00-0002", "900-00-0003", "900-00-0004",
		"900-00-0005", "900-00-0006", "900-00-0007", "900-00-0008",
	},
	"card": {
		"4000-0000-0000-0001", "4000-0000-0000-0002",
		"4000-0000-0000-0003", "4000-0000-0000-0004",
		"5100-0000-0000-0001", "5100-0000-0000-0002",
	},
	"address": {
		"100 Example Street", "200 Sample Avenue", "300 Placeholder Road",
		"400 Test Boulevard", "500 Demo Lane", "600 Specimen Drive",
	},
	"ip": {
		"192.0.2.1", "192.0.2.2", "192.0.2.3", "192.0.2.4",
		"198.51.100.1", "198.51.100.2", "203.0.113.1", "203.0.113.2",
	},
	"company": {
		"Acme Corporation", "Globex Industries", "Initech LLC",
		"Umbrella Holdings", "Stark Ventures", "Wayne Enterprises",
	},
}

// Generate returns the nth pseudonym for an entity type (n counts from
// zero, in order of first occurrence). Beyond the pool, or for unknown
// entity types, it falls back to a deterministic numbered placeholder; this
// path never fails.
func Generate(entityType string, n int) string {
	pool := pools[entityType]
	if n < len(pool) {
		return pool[n]
	}
	return fmt.Sprintf("%s#%d", entityType, n-len(pool)+1)
}

// PoolSize reports how many realistic values exist for an entity type.
func PoolSize(entityType string) int {
	return len(pools[entityType])
}
