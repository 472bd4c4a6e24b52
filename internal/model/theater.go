package model

// Theater is a cinema site; theaters are grouped by region and chain when
// listed.
type Theater struct {
	ID        uint64   `json:"id"`        // theaters.id
	Name      string   `json:"name"`      // theaters.name
	Chain     string   `json:"chain"`     // theaters.chain (CGV, Lotte Cinema, ...)
	Region    string   `json:"region"`    // theaters.region
	City      string   `json:"city"`      // theaters.city
	Address   string   `json:"address"`   // theaters.address
	Latitude  *float64 `json:"latitude"`  // theaters.latitude (nullable)
	Longitude *float64 `json:"longitude"` // theaters.longitude (nullable)
}

// ChainGroup holds the theaters of one chain inside a region.
type ChainGroup struct {
	Chain    string    `json:"chain"`
	Theaters []Theater `json:"theaters"`
}

// RegionGroup holds every chain present in a region.
type RegionGroup struct {
	Region string       `json:"region"`
	Chains []ChainGroup `json:"chains"`
}
