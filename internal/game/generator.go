package game

import (
	"math/rand"

	"go.uber.org/zap"
)

// Room layout, in tiles.
const (
	roomTilesX  = 17
	roomTilesY  = 9
	stairsTileX = 10
	stairsTileY = 4
)

// GenerateRooms lays out a random walk of walled rooms starting at the
// origin. Each room opens east or north into the next one, or climbs to it
// by stairs. The hero starts in the first room with a familiar and a
// monster. It returns the hero's storage index.
func (s *State) GenerateRooms(rooms int, seed int64) uint32 {
	rng := rand.New(rand.NewSource(seed))
	var screenX, screenY, tileZ int32
	doorLeft, doorBottom := false, false
	placed := 0

	for room := 0; room < rooms; room++ {
		last := room == rooms-1
		doorRight, doorTop, doorUp := false, false, false
		if !last {
			switch rng.Intn(3) {
			case 0:
				doorRight = true
			case 1:
				doorTop = true
			default:
				doorUp = true
			}
		}

		baseX, baseY := screenX*roomTilesX, screenY*roomTilesY
		s.AddSpace(baseX+roomTilesX/2, baseY+roomTilesY/2, tileZ)
		for ty := int32(0); ty < roomTilesY; ty++ {
			for tx := int32(0); tx < roomTilesX; tx++ {
				midY := ty == roomTilesY/2
				midX := tx == roomTilesX/2
				wall := false
				switch {
				case tx == 0:
					wall = !(doorLeft && midY)
				case tx == roomTilesX-1:
					wall = !(doorRight && midY)
				}
				switch {
				case ty == 0:
					wall = wall || !(doorBottom && midX)
				case ty == roomTilesY-1:
					wall = wall || !(doorTop && midX)
				}
				if wall && s.AddWall(baseX+tx, baseY+ty, tileZ) != 0 {
					placed++
				}
			}
		}
		if doorUp {
			s.AddStairs(baseX+stairsTileX, baseY+stairsTileY, tileZ)
		}

		doorLeft, doorBottom = doorRight, doorTop
		switch {
		case doorRight:
			screenX++
		case doorTop:
			screenY++
		case doorUp:
			tileZ++
		}
	}

	hero := s.AddHero(roomTilesX/2, roomTilesY/2, 0)
	s.AddFamiliar(roomTilesX/2-3, roomTilesY/2+2, 0)
	s.AddMonster(roomTilesX/2+5, roomTilesY/2-2, 0)
	s.log.Info("rooms generated",
		zap.Int("rooms", rooms),
		zap.Int("walls", placed),
		zap.Int("entities", s.ctx.Storage.Count()))
	return hero
}
