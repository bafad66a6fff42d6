package migration

import (
	"github.com/avstrong/reservation/internal/logger"
)

type inventorySeeder interface {
	SetTotalRooms(hotelID string, total int)
}

// Up seeds the local inventory fixture. Production deployments read room
// counts from the catalog collaborator instead.
func Up(l *logger.Logger, seeder inventorySeeder) {
	hotels := map[string]int{
		"reddison":    5,
		"grandplaza":  2,
		"harbourview": 1,
	}

	for hotelID, total := range hotels {
		seeder.SetTotalRooms(hotelID, total)
	}

	l.LogInfo("Seeded %v hotels into the inventory fixture", len(hotels))
}
