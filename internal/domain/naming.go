package domain

import "strings"

// Naming carries the resource name prefix and the tags stamped on every
// resource of a deployment.
type Naming struct {
	Namespace   string
	Environment string
	Name        string
}

// Prefix is namespace-environment-name.
func (n Naming) Prefix() string {
	return strings.Join([]string{n.Namespace, n.Environment, n.Name}, "-")
}

// Resource joins parts onto the prefix.
func (n Naming) Resource(parts ...string) string {
	return strings.Join(append([]string{n.Prefix()}, parts...), "-")
}

func (n Naming) BaseTags() Tags {
	return Tags{
		TagNamespace:   n.Namespace,
		TagEnvironment: n.Environment,
		TagName:        n.Prefix(),
	}
}

// Tagged returns the base tags with Name set to the resource name for parts.
func (n Naming) Tagged(parts ...string) Tags {
	return n.BaseTags().With(Tags{TagName: n.Resource(parts...)})
}
