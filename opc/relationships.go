package opc

import (
	"net"
	"net/url"
	"path"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/net/idna"

	"github.com/tsawler/sheetkit/xlerr"
)

// Relationship types used by spreadsheet packages.
const (
	RelTypeOfficeDocument = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument"
	RelTypeCoreProperties = "http://schemas.openxmlformats.org/package/2006/relationships/metadata/core-properties"
	RelTypeExtendedProps  = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/extended-properties"
	RelTypeWorksheet      = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/worksheet"
	RelTypeChartsheet     = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/chartsheet"
	RelTypeSharedStrings  = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/sharedStrings"
	RelTypeStyles         = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/styles"
	RelTypeTheme          = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/theme"
	RelTypeCalcChain      = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/calcChain"
	RelTypeDrawing        = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/drawing"
	RelTypeImage          = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/image"
	RelTypeHyperlink      = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/hyperlink"
)

// TargetMode tells whether a relationship points inside the package.
type TargetMode int

const (
	// Internal targets name a part in the package.
	Internal TargetMode = iota
	// External targets are URIs outside the package.
	External
)

func (m TargetMode) String() string {
	if m == External {
		return "External"
	}
	return "Internal"
}

// Relationship is a typed, directed edge from an owner part.
type Relationship struct {
	ID     string
	Type   string
	Target string // relative to the owner's directory for internal targets
	Mode   TargetMode
}

// relationshipSet holds the relationships of a single owner. Ids are
// allocated from a counter that only moves forward, so a removed id is
// never handed out again.
type relationshipSet struct {
	rels []Relationship
	byID map[string]int
	next int
}

func newRelationshipSet() *relationshipSet {
	return &relationshipSet{byID: make(map[string]int)}
}

func (s *relationshipSet) get(id string) (Relationship, bool) {
	i, ok := s.byID[id]
	if !ok {
		return Relationship{}, false
	}
	return s.rels[i], true
}

func (s *relationshipSet) add(r Relationship) bool {
	if _, dup := s.byID[r.ID]; dup {
		return false
	}
	s.byID[r.ID] = len(s.rels)
	s.rels = append(s.rels, r)
	if n, ok := idNumber(r.ID); ok && n > s.next {
		s.next = n
	}
	return true
}

func (s *relationshipSet) allocate() string {
	for {
		s.next++
		id := "rId" + strconv.Itoa(s.next)
		if _, taken := s.byID[id]; !taken {
			return id
		}
	}
}

func (s *relationshipSet) remove(id string) bool {
	i, ok := s.byID[id]
	if !ok {
		return false
	}
	s.rels = append(s.rels[:i], s.rels[i+1:]...)
	delete(s.byID, id)
	for j := i; j < len(s.rels); j++ {
		s.byID[s.rels[j].ID] = j
	}
	return true
}

// sorted returns a copy ordered by id.
func (s *relationshipSet) sorted() []Relationship {
	out := make([]Relationship, len(s.rels))
	copy(out, s.rels)
	sort.SliceStable(out, func(i, j int) bool { return idLess(out[i].ID, out[j].ID) })
	return out
}

// idNumber extracts n from "rId<n>".
func idNumber(id string) (int, bool) {
	i := len(id)
	for i > 0 && id[i-1] >= '0' && id[i-1] <= '9' {
		i--
	}
	if i == len(id) {
		return 0, false
	}
	n, err := strconv.Atoi(id[i:])
	if err != nil {
		return 0, false
	}
	return n, true
}

// idLess orders ids by numeric suffix, then lexically.
func idLess(a, b string) bool {
	na, oka := idNumber(a)
	nb, okb := idNumber(b)
	switch {
	case oka && okb && na != nb:
		return na < nb
	case oka != okb:
		return oka
	default:
		return a < b
	}
}

// RelsPartName returns the name of the relationships part that belongs to
// owner. The package root ("") maps to "_rels/.rels".
func RelsPartName(owner string) string {
	owner = NormalizeName(owner)
	dir, base := path.Split(owner)
	return dir + "_rels/" + base + ".rels"
}

// ownerOfRels is the inverse of RelsPartName. ok is false when name is not
// a relationships part.
func ownerOfRels(name string) (owner string, ok bool) {
	if !strings.HasSuffix(strings.ToLower(name), ".rels") {
		return "", false
	}
	dir, base := path.Split(name)
	dir = strings.TrimSuffix(dir, "/")
	if !strings.EqualFold(path.Base(dir), "_rels") {
		return "", false
	}
	parent := strings.TrimSuffix(dir[:len(dir)-len("_rels")], "/")
	base = base[:len(base)-len(".rels")]
	if parent == "" {
		return base, true
	}
	return parent + "/" + base, true
}

// ResolveTarget turns a relationship target into an absolute part name.
// A target starting with "/" is already absolute; anything else is relative
// to the owner's directory.
func ResolveTarget(owner, target string) string {
	if unescaped, err := url.PathUnescape(target); err == nil {
		target = unescaped
	}
	if strings.HasPrefix(target, "/") {
		return NormalizeName(target)
	}
	return NormalizeName(path.Join(path.Dir(NormalizeName(owner)), target))
}

// relativeTarget expresses part as a path relative to owner's directory.
func relativeTarget(owner, part string) string {
	from := strings.Split(path.Dir(NormalizeName(owner)), "/")
	if len(from) == 1 && from[0] == "." {
		from = nil
	}
	to := strings.Split(NormalizeName(part), "/")

	common := 0
	for common < len(from) && common < len(to)-1 && from[common] == to[common] {
		common++
	}
	var b strings.Builder
	for i := common; i < len(from); i++ {
		b.WriteString("../")
	}
	b.WriteString(strings.Join(to[common:], "/"))
	return b.String()
}

// hostProfile accepts the host names found in real documents, which
// include underscores that strict STD3 rules reject.
var hostProfile = idna.New(idna.MapForLookup(), idna.StrictDomainName(false))

// validateExternal checks that target is a well-formed URI.
func validateExternal(target string) error {
	u, err := url.Parse(target)
	if err != nil {
		return err
	}
	host := u.Hostname()
	if host == "" || net.ParseIP(host) != nil {
		return nil
	}
	_, err = hostProfile.ToASCII(host)
	return err
}

// AddRelationship adds a relationship from owner and returns its new id.
// Internal targets are absolute part names that must already exist; they
// are stored relative to owner. External targets must be well-formed URIs.
func (p *Package) AddRelationship(owner, relType, target string, mode TargetMode) (string, error) {
	owner = NormalizeName(owner)
	if owner != "" && !p.HasPart(owner) {
		return "", xlerr.Integrityf("add relationship", owner, "owner part does not exist")
	}

	stored := target
	switch mode {
	case Internal:
		name, ok := p.lookup(ResolveTarget("", target))
		if !ok {
			return "", xlerr.Integrityf("add relationship", owner, "target part %q does not exist", target)
		}
		stored = relativeTarget(owner, name)
	case External:
		if err := validateExternal(target); err != nil {
			return "", xlerr.Valuef("add relationship", "malformed external target %q: %v", target, err)
		}
	}

	set := p.relSet(owner)
	id := set.allocate()
	set.add(Relationship{ID: id, Type: relType, Target: stored, Mode: mode})
	return id, nil
}

func (p *Package) relSet(owner string) *relationshipSet {
	set, ok := p.rels[owner]
	if !ok {
		set = newRelationshipSet()
		p.rels[owner] = set
	}
	return set
}

// Resolve returns the relationship with the given id from owner.
func (p *Package) Resolve(owner, id string) (Relationship, error) {
	owner = p.canonical(owner)
	if set, ok := p.rels[owner]; ok {
		if r, ok := set.get(id); ok {
			return r, nil
		}
	}
	return Relationship{}, xlerr.Integrityf("resolve", owner, "no relationship %q", id)
}

// ResolvePart returns the absolute part name an internal relationship
// points at.
func (p *Package) ResolvePart(owner, id string) (string, error) {
	owner = p.canonical(owner)
	r, err := p.Resolve(owner, id)
	if err != nil {
		return "", err
	}
	if r.Mode == External {
		return "", xlerr.Valuef("resolve", "relationship %q of %s is external", id, owner)
	}
	name, ok := p.lookup(ResolveTarget(owner, r.Target))
	if !ok {
		return "", xlerr.Integrityf("resolve", owner, "relationship %q targets missing part %q", id, r.Target)
	}
	return name, nil
}

// Relationships returns owner's relationships ordered by id.
func (p *Package) Relationships(owner string) []Relationship {
	set, ok := p.rels[p.canonical(owner)]
	if !ok {
		return nil
	}
	return set.sorted()
}

// RelationshipsByType returns owner's relationships of relType ordered by id.
func (p *Package) RelationshipsByType(owner, relType string) []Relationship {
	var out []Relationship
	for _, r := range p.Relationships(owner) {
		if r.Type == relType {
			out = append(out, r)
		}
	}
	return out
}

// RemoveRelationship deletes a relationship. The target part is left in
// place; it is pruned on save if nothing else reaches it.
func (p *Package) RemoveRelationship(owner, id string) error {
	owner = p.canonical(owner)
	set, ok := p.rels[owner]
	if !ok || !set.remove(id) {
		return xlerr.Integrityf("remove relationship", owner, "no relationship %q", id)
	}
	return nil
}

// Validate checks every relationship: owners exist, internal targets name
// present parts and external targets are well-formed.
func (p *Package) Validate() error {
	owners := make([]string, 0, len(p.rels))
	for owner := range p.rels {
		owners = append(owners, owner)
	}
	sort.Strings(owners)

	for _, owner := range owners {
		if owner != "" && !p.HasPart(owner) {
			return xlerr.Integrityf("validate", RelsPartName(owner), "relationships owner %q does not exist", owner)
		}
		for _, r := range p.rels[owner].rels {
			if r.Mode == External {
				if err := validateExternal(r.Target); err != nil {
					return xlerr.Integrityf("validate", RelsPartName(owner), "relationship %q has malformed external target %q: %v", r.ID, r.Target, err)
				}
				continue
			}
			if !p.HasPart(ResolveTarget(owner, r.Target)) {
				return xlerr.Integrityf("validate", RelsPartName(owner), "relationship %q targets missing part %q", r.ID, r.Target)
			}
		}
	}
	return nil
}

// reachable walks internal relationships from the package root.
func (p *Package) reachable() map[string]bool {
	seen := map[string]bool{"": true}
	queue := []string{""}
	for len(queue) > 0 {
		owner := queue[0]
		queue = queue[1:]
		set, ok := p.rels[owner]
		if !ok {
			continue
		}
		for _, r := range set.rels {
			if r.Mode == External {
				continue
			}
			name, ok := p.lookup(ResolveTarget(owner, r.Target))
			if !ok || seen[name] {
				continue
			}
			seen[name] = true
			queue = append(queue, name)
		}
	}
	return seen
}
