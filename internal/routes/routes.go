// Package routes maps residual paths onto page descriptors.
package routes

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tpcglobalcommunity/tpcglobal-sub000/internal/gate"
	"github.com/tpcglobalcommunity/tpcglobal-sub000/internal/pages"
)

// HomeRoute names the soft-404 target.
const HomeRoute = "home"

// Descriptor is a static route table entry. Descriptors are read-only once
// the dispatcher is built.
type Descriptor struct {
	Name    string
	Pattern Pattern
	// Example is a residual path that must dispatch to this route.
	Example  string
	TitleKey string
	Page     pages.Factory
	Policy   gate.Policy
	// AuthPage selects the minimal auth shell.
	AuthPage bool
}

// Match is the result of a dispatch.
type Match struct {
	Route  *Descriptor
	Params map[string]string
	// Fallback is set when nothing matched and home was used.
	Fallback bool
}

// Dispatcher owns the ordered route table.
type Dispatcher struct {
	table  []Descriptor
	tiers  map[PatternKind][]*Descriptor
	exact  map[string]*Descriptor
	byName map[string]*Descriptor
	home   *Descriptor
}

// New builds a dispatcher and validates the table.
func New(table []Descriptor) (*Dispatcher, error) {
	d := build(table)
	if err := d.validate(); err != nil {
		return nil, err
	}
	return d, nil
}

// MustNew is New for static tables.
func MustNew(table []Descriptor) *Dispatcher {
	d, err := New(table)
	if err != nil {
		panic(err)
	}
	return d
}

func build(table []Descriptor) *Dispatcher {
	d := &Dispatcher{
		table:  append([]Descriptor(nil), table...),
		tiers:  map[PatternKind][]*Descriptor{},
		exact:  map[string]*Descriptor{},
		byName: map[string]*Descriptor{},
	}
	for i := range d.table {
		desc := &d.table[i]
		if _, dup := d.byName[desc.Name]; !dup {
			d.byName[desc.Name] = desc
		}
		switch desc.Pattern.Kind {
		case Exact:
			if _, dup := d.exact[desc.Pattern.Path]; !dup {
				d.exact[desc.Pattern.Path] = desc
			}
		default:
			d.tiers[desc.Pattern.Kind] = append(d.tiers[desc.Pattern.Kind], desc)
		}
	}
	d.home = d.byName[HomeRoute]
	return d
}

// Dispatch maps a residual path onto a route. Unmatched paths fall back to
// home; dispatch never fails.
func (d *Dispatcher) Dispatch(residual string) Match {
	residual = clean(residual)
	for _, kind := range []PatternKind{PrefixSuffix, Prefix} {
		for _, desc := range d.tiers[kind] {
			if params, ok := desc.Pattern.Match(residual); ok {
				return Match{Route: desc, Params: params}
			}
		}
	}
	if desc, ok := d.exact[residual]; ok {
		return Match{Route: desc}
	}
	return Match{Route: d.home, Fallback: true}
}

// Lookup returns the route named name.
func (d *Dispatcher) Lookup(name string) (*Descriptor, bool) {
	desc, ok := d.byName[name]
	return desc, ok
}

// Routes returns the table in declaration order.
func (d *Dispatcher) Routes() []Descriptor {
	return append([]Descriptor(nil), d.table...)
}

// Validate checks a table without keeping the dispatcher.
func Validate(table []Descriptor) error {
	return build(table).validate()
}

func (d *Dispatcher) validate() error {
	var errs []error
	names := map[string]int{}
	paths := map[string]int{}
	for _, desc := range d.table {
		if desc.Name == "" {
			errs = append(errs, fmt.Errorf("route %s has no name", desc.Pattern))
		}
		names[desc.Name]++
		if desc.Pattern.Kind == Exact {
			paths[desc.Pattern.Path]++
		}
		if err := desc.Pattern.validate(); err != nil {
			errs = append(errs, fmt.Errorf("route %q: %w", desc.Name, err))
		}
		if desc.Page == nil {
			errs = append(errs, fmt.Errorf("route %q has no page", desc.Name))
		}
	}
	for name, n := range names {
		if n > 1 && name != "" {
			errs = append(errs, fmt.Errorf("route name %q declared %d times", name, n))
		}
	}
	for path, n := range paths {
		if n > 1 {
			errs = append(errs, fmt.Errorf("exact path %q declared %d times", path, n))
		}
	}
	if d.home == nil {
		errs = append(errs, fmt.Errorf("no %q route for the fallback", HomeRoute))
	}

	for i := range d.table {
		desc := &d.table[i]
		if desc.Example == "" {
			errs = append(errs, fmt.Errorf("route %q has no example path", desc.Name))
			continue
		}
		var sameTier []string
		for _, other := range d.table {
			if other.Pattern.Kind != desc.Pattern.Kind {
				continue
			}
			if _, ok := other.Pattern.Match(clean(desc.Example)); ok {
				sameTier = append(sameTier, other.Name)
			}
		}
		if len(sameTier) > 1 {
			errs = append(errs, fmt.Errorf("example %q is ambiguous between %s", desc.Example, strings.Join(sameTier, ", ")))
		}
		if d.home == nil {
			continue
		}
		if got := d.Dispatch(desc.Example); got.Fallback || got.Route.Name != desc.Name {
			owner := "fallback"
			if got.Route != nil && !got.Fallback {
				owner = got.Route.Name
			}
			errs = append(errs, fmt.Errorf("example %q of route %q dispatches to %s", desc.Example, desc.Name, owner))
		}
	}
	return errors.Join(errs...)
}

// clean trims a trailing slash so "/news/" and "/news" dispatch alike.
func clean(residual string) string {
	if residual == "" {
		return "/"
	}
	if len(residual) > 1 {
		residual = strings.TrimSuffix(residual, "/")
	}
	return residual
}
