package weather

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

var (
	London   = City{ID: "london", Name: "London", Location: Coordinates{Lat: 51.5073359, Lon: -0.12765}}
	Helsinki = City{ID: "helsinki", Name: "Helsinki", Location: Coordinates{Lat: 60.1674881, Lon: 24.9427473}}
)

// Catalog is an immutable, ordered set of cities.
type Catalog struct {
	cities []City
	byID   map[string]City
}

// NewCatalog validates every city and keeps them in the given order.
func NewCatalog(cities ...City) (*Catalog, error) {
	if len(cities) == 0 {
		return nil, fmt.Errorf("catalog needs at least one city")
	}

	c := &Catalog{
		cities: make([]City, 0, len(cities)),
		byID:   make(map[string]City, len(cities)),
	}
	for _, city := range cities {
		if err := validate.Struct(city); err != nil {
			return nil, fmt.Errorf("invalid city %q: %w", city.ID, err)
		}
		key := strings.ToLower(city.ID)
		if _, dup := c.byID[key]; dup {
			return nil, fmt.Errorf("duplicate city id %q", city.ID)
		}
		c.byID[key] = city
		c.cities = append(c.cities, city)
	}
	return c, nil
}

// DefaultCatalog returns the built-in London and Helsinki catalog.
func DefaultCatalog() *Catalog {
	c, err := NewCatalog(London, Helsinki)
	if err != nil {
		panic(err)
	}
	return c
}

// All returns the cities in catalog order.
func (c *Catalog) All() []City {
	out := make([]City, len(c.cities))
	copy(out, c.cities)
	return out
}

// CoordinatesOf returns the position of city.
func (c *Catalog) CoordinatesOf(city City) Coordinates {
	if known, ok := c.byID[strings.ToLower(city.ID)]; ok {
		return known.Location
	}
	return city.Location
}

// Lookup resolves a city by ID or display name, case-insensitively.
func (c *Catalog) Lookup(key string) (City, error) {
	key = strings.ToLower(strings.TrimSpace(key))
	if city, ok := c.byID[key]; ok {
		return city, nil
	}
	for _, city := range c.cities {
		if strings.ToLower(city.Name) == key {
			return city, nil
		}
	}
	return City{}, fmt.Errorf("%w: %q", ErrUnknownCity, key)
}

// Default returns the first city of the catalog.
func (c *Catalog) Default() City {
	return c.cities[0]
}
