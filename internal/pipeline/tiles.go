package pipeline

import (
	"sort"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
	"github.com/paulmach/orb/planar"

	"github.com/pissang/little-big-city/internal/repository/cache"
	"github.com/pissang/little-big-city/internal/surface"
)

// View is the map center a pass is generated for.
type View struct {
	Lng float64 `json:"lng"`
	Lat float64 `json:"lat"`
}

func (v View) Point() orb.Point {
	return orb.Point{v.Lng, v.Lat}
}

// TileJob is one visible tile of a pass.
type TileJob struct {
	Index int
	Tile  maptile.Tile
	Face  surface.Face
	URL   string
	// Extent is the tile bound in longitude/latitude.
	Extent orb.Bound
	// Rect is the tile footprint in local units after normalization.
	Rect surface.Rect
	// Offset is added to lon/lat before scaling.
	Offset orb.Point
}

func (j TileJob) Key() cache.TileCacheKey {
	return cache.TileCacheKey{X: int(j.Tile.X), Y: int(j.Tile.Y), Z: int(j.Tile.Z)}
}

func (j TileJob) Name() string {
	return j.Key().String()
}

// VisibleTiles returns the tile under center followed by its neighbours,
// nearest first, capped at MaxTiles. In tile style only the tile under
// center is returned.
func (p Params) VisibleTiles(center orb.Point) []maptile.Tile {
	z := maptile.Zoom(p.Zoom)
	origin := maptile.At(center, z)
	if p.TileStyle() {
		return []maptile.Tile{origin}
	}

	n := int64(1) << p.Zoom
	var tiles []maptile.Tile
	for dy := int64(-1); dy <= 1; dy++ {
		for dx := int64(-1); dx <= 1; dx++ {
			y := int64(origin.Y) + dy
			if y < 0 || y >= n {
				continue
			}
			x := ((int64(origin.X)+dx)%n + n) % n
			t := maptile.New(uint32(x), uint32(y), z)
			if containsTile(tiles, t) {
				continue
			}
			tiles = append(tiles, t)
		}
	}

	sort.SliceStable(tiles, func(i, j int) bool {
		return planar.Distance(center, tiles[i].Center()) < planar.Distance(center, tiles[j].Center())
	})

	if p.MaxTiles > 0 && len(tiles) > p.MaxTiles {
		tiles = tiles[:p.MaxTiles]
	}
	return tiles
}

func containsTile(tiles []maptile.Tile, t maptile.Tile) bool {
	for _, o := range tiles {
		if o == t {
			return true
		}
	}
	return false
}

// TileURL expands the upstream template for t. The subdomain shard is
// picked round-robin by index.
func (p Params) TileURL(t maptile.Tile, idx int) string {
	subdomain := ""
	if len(p.Subdomains) > 0 {
		subdomain = p.Subdomains[idx%len(p.Subdomains)]
	}
	return strings.NewReplacer(
		"{z}", strconv.FormatUint(uint64(t.Z), 10),
		"{x}", strconv.FormatUint(uint64(t.X), 10),
		"{y}", strconv.FormatUint(uint64(t.Y), 10),
		"{s}", subdomain,
		"{key}", p.APIKey,
	).Replace(p.URLTemplate)
}

// Jobs builds the jobs of a pass centered on center.
func (p Params) Jobs(center orb.Point) []TileJob {
	tiles := p.VisibleTiles(center)
	jobs := make([]TileJob, 0, len(tiles))
	for idx, t := range tiles {
		jobs = append(jobs, p.job(idx, t))
	}
	return jobs
}

func (p Params) job(idx int, t maptile.Tile) TileJob {
	extent := t.Bound()
	width := (extent.Max[0] - extent.Min[0]) * p.ScaleX
	height := (extent.Max[1] - extent.Min[1]) * p.ScaleY

	job := TileJob{
		Index:  idx,
		Tile:   t,
		Face:   surface.FaceAt(idx),
		URL:    p.TileURL(t, idx),
		Extent: extent,
	}
	if p.TileStyle() {
		c := extent.Center()
		job.Offset = orb.Point{-c[0], -c[1]}
		job.Rect = surface.Rect{X: -width / 2, Y: -height / 2, Width: width, Height: height}
	} else {
		job.Offset = orb.Point{-extent.Min[0], -extent.Min[1]}
		job.Rect = surface.Rect{Width: width, Height: height}
	}
	return job
}
