package inmem

import (
	"errors"
	"fmt"
	"strings"

	yaml "gopkg.in/yaml.v2"
)

var ErrMissingZoneHome = errors.New("snapshot lacks zoneHome")

// `Snapshot` is the YAML description of a store content, used to seed a
// dry-run store.  Example:
//
//	zoneHome: /tempZone/home
//	groups:
//	  research-initial:
//	    category: test-automation
//	  datamanager-test-automation: {}
//	collections:
//	  - /tempZone/home/research-initial/dataset
//	dataObjects:
//	  - /tempZone/home/research-initial/dataset/readme.txt
//	attrs:
//	  /tempZone/home/research-initial/dataset:
//	    org_status: [SUBMITTED]
//
type Snapshot struct {
	ZoneHome    string                         `yaml:"zoneHome"`
	Groups      map[string]GroupConfig         `yaml:"groups"`
	Collections []string                       `yaml:"collections"`
	DataObjects []string                       `yaml:"dataObjects"`
	Attrs       map[string]map[string][]string `yaml:"attrs"`
}

type GroupConfig struct {
	Category string `yaml:"category"`
}

func ParseSnapshot(dat []byte) (*Snapshot, error) {
	var snap Snapshot
	if err := yaml.UnmarshalStrict(dat, &snap); err != nil {
		return nil, err
	}
	if snap.ZoneHome == "" {
		return nil, ErrMissingZoneHome
	}
	return &snap, nil
}

// `NewStoreFromSnapshot()` builds a store that contains the zone home, the
// listed objects, and their attributes.
func NewStoreFromSnapshot(snap *Snapshot) (*Store, error) {
	s := NewStore()
	s.AddCollection(snap.ZoneHome)
	for _, c := range snap.Collections {
		s.AddCollection(c)
	}
	for _, o := range snap.DataObjects {
		s.AddDataObject(o)
	}
	for obj, attrs := range snap.Attrs {
		for name, vals := range attrs {
			for _, v := range vals {
				if err := s.AddAttr(obj, name, v); err != nil {
					return nil, fmt.Errorf(
						"attr `%s` on `%s`: %v",
						name, obj, err,
					)
				}
			}
		}
	}
	return s, nil
}

// `Groups` resolves folder groups and group categories from a snapshot.  The
// owning group of a folder is the first path element below the zone home.
type Groups struct {
	home       string
	categories map[string]string
	known      map[string]bool
}

func NewGroups(snap *Snapshot) *Groups {
	g := &Groups{
		home:       strings.TrimRight(snap.ZoneHome, "/"),
		categories: make(map[string]string),
		known:      make(map[string]bool),
	}
	for name, cfg := range snap.Groups {
		g.known[name] = true
		if cfg.Category != "" {
			g.categories[name] = cfg.Category
		}
	}
	return g
}

func (g *Groups) GroupOf(folder string) (string, error) {
	rel := strings.TrimPrefix(folder, g.home+"/")
	if rel == folder {
		return "", fmt.Errorf(
			"folder `%s` is outside the zone home", folder,
		)
	}
	name := rel
	if i := strings.IndexByte(rel, '/'); i != -1 {
		name = rel[:i]
	}
	if !g.known[name] {
		return "", fmt.Errorf("unknown group `%s`", name)
	}
	return name, nil
}

func (g *Groups) CategoryOf(group string) (string, error) {
	cat, ok := g.categories[group]
	if !ok {
		return "", fmt.Errorf("group `%s` has no category", group)
	}
	return cat, nil
}

func (g *Groups) GroupExists(name string) bool {
	return g.known[name]
}
