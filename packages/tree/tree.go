// Package tree builds nested API clients from a declarative resource tree.
//
// A Node declares a resource: its URL suffix, the verbs it accepts, the
// sub-resources below it and, for collections, the shape of a single member
// (the instance node). Build walks the tree once and creates one
// http.Resource per node, each derived from its parent.
package tree

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sort"
	"strings"

	fhttp "github.com/abdul-hamid-achik/fetchling/packages/http"
	"gopkg.in/yaml.v3"
)

var (
	// ErrMissingURL is returned when the root node has no URL.
	ErrMissingURL = errors.New("resource URL is required")
	// ErrMethodNotAllowed is returned by Call for a verb the node does not declare.
	ErrMethodNotAllowed = errors.New("method not allowed for resource")
	// ErrNoInstance is returned by Instance when the node declares no instance.
	ErrNoInstance = errors.New("resource has no instance declaration")
	// ErrNotFound is returned by Lookup for an unknown path.
	ErrNotFound = errors.New("resource not found")
)

// Node declares a resource. URL is required on the root; a child without a
// URL uses its name as the path segment.
type Node struct {
	Name      string           `yaml:"name,omitempty" json:"name,omitempty"`
	URL       string           `yaml:"url,omitempty" json:"url,omitempty"`
	Methods   []string         `yaml:"methods,omitempty" json:"methods,omitempty"`
	Instance  *Node            `yaml:"instance,omitempty" json:"instance,omitempty"`
	Resources map[string]*Node `yaml:"resources,omitempty" json:"resources,omitempty"`
}

// Parse reads a YAML resource tree.
func Parse(data []byte) (*Node, error) {
	var node Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("failed to parse resource tree: %w", err)
	}
	return &node, nil
}

// Load reads a YAML resource tree from a file.
func Load(path string) (*Node, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read resource tree: %w", err)
	}
	return Parse(data)
}

// Tree is a built node: a resource plus its allowed verbs and children.
type Tree struct {
	Name     string
	Resource *fhttp.Resource

	methods  []string
	instance *Node
	children map[string]*Tree
}

// Build creates the resources for root and everything below it on client.
// The root starts with JSON enabled; init overlays are applied after that.
func Build(client *fhttp.Client, root *Node, init ...fhttp.Init) (*Tree, error) {
	if root == nil || root.URL == "" {
		return nil, ErrMissingURL
	}

	overlays := append([]fhttp.Init{{JSON: fhttp.Bool(true)}}, init...)
	resource := client.Resource(root.URL, overlays...)

	return build(root.Name, resource, root)
}

func build(name string, resource *fhttp.Resource, node *Node) (*Tree, error) {
	methods, err := normalizeMethods(node.Methods)
	if err != nil {
		return nil, fmt.Errorf("resource %q: %w", name, err)
	}

	t := &Tree{
		Name:     name,
		Resource: resource,
		methods:  methods,
		instance: node.Instance,
		children: make(map[string]*Tree, len(node.Resources)),
	}

	for childName, child := range node.Resources {
		if child == nil {
			child = &Node{}
		}
		suffix := child.URL
		if suffix == "" {
			suffix = childName
		}
		built, err := build(childName, resource.Derive(suffix), child)
		if err != nil {
			return nil, err
		}
		t.children[childName] = built
	}

	return t, nil
}

// normalizeMethods upper-cases the declared verbs, defaulting to every
// supported verb when none are declared.
func normalizeMethods(declared []string) ([]string, error) {
	if len(declared) == 0 {
		return append([]string(nil), fhttp.Methods...), nil
	}

	methods := make([]string, 0, len(declared))
	for _, m := range declared {
		if !fhttp.IsSupportedMethod(m) {
			return nil, fmt.Errorf("%w: %s", fhttp.ErrUnsupportedMethod, m)
		}
		methods = append(methods, strings.ToUpper(m))
	}
	return methods, nil
}

// Methods returns the verbs the resource accepts.
func (t *Tree) Methods() []string {
	return append([]string(nil), t.methods...)
}

// Allows reports whether method (in any case) is declared on the resource.
func (t *Tree) Allows(method string) bool {
	m := strings.ToUpper(method)
	for _, allowed := range t.methods {
		if allowed == m {
			return true
		}
	}
	return false
}

// Child returns the named sub-resource.
func (t *Tree) Child(name string) (*Tree, bool) {
	child, ok := t.children[name]
	return child, ok
}

// Children returns the sub-resource names in sorted order.
func (t *Tree) Children() []string {
	names := make([]string, 0, len(t.children))
	for name := range t.children {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup follows a dot-separated path of child names, e.g. "animals.photos".
// An empty path returns t.
func (t *Tree) Lookup(path string) (*Tree, error) {
	current := t
	if path == "" {
		return current, nil
	}
	for _, name := range strings.Split(path, ".") {
		child, ok := current.Child(name)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		current = child
	}
	return current, nil
}

// Instance returns the member resource id of a collection, shaped by the
// node's instance declaration.
func (t *Tree) Instance(id string, init ...fhttp.Init) (*Tree, error) {
	if t.instance == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoInstance, t.Name)
	}
	suffix := id
	if t.instance.URL != "" {
		suffix = t.instance.URL + "/" + id
	}
	return build(id, t.Resource.Derive(suffix, init...), t.instance)
}

// Call sends method to the resource. For GET, HEAD and OPTIONS args become
// query parameters; for every other verb they are sent as a JSON body.
func (t *Tree) Call(ctx context.Context, method string, args map[string]any, init ...fhttp.Init) (*fhttp.Response, error) {
	if !t.Allows(method) {
		return nil, fmt.Errorf("%w: %s %s", ErrMethodNotAllowed, strings.ToUpper(method), t.Resource.URL())
	}

	call := fhttp.Init{Method: strings.ToUpper(method)}
	if args != nil {
		switch call.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			call.Query = args
		default:
			call.JSONBody = args
		}
	}

	overlays := append(init[:len(init):len(init)], call)
	return t.Resource.Fetch(ctx, overlays...)
}

// Walk visits t and every sub-resource depth first, children in name order.
// path is the dot-separated lookup path of the visited resource.
func (t *Tree) Walk(fn func(path string, t *Tree) error) error {
	return t.walk("", fn)
}

func (t *Tree) walk(path string, fn func(string, *Tree) error) error {
	if err := fn(path, t); err != nil {
		return err
	}
	for _, name := range t.Children() {
		childPath := name
		if path != "" {
			childPath = path + "." + name
		}
		if err := t.children[name].walk(childPath, fn); err != nil {
			return err
		}
	}
	return nil
}

// HasInstance reports whether the resource declares a member shape.
func (t *Tree) HasInstance() bool {
	return t.instance != nil
}
