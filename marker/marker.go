// Package marker holds the tag that opts a type into JSON context generation.
//
// Embed Serializable in a struct to register it:
//
//	type User struct {
//		marker.Serializable
//		Name string `json:"name"`
//	}
//
// Types that embed a marked type are registered too unless the project
// config sets includeBaseTypes to false. The marker is zero-size and has no
// fields or methods, so it adds nothing to the JSON encoding.
package marker

// Serializable marks a type for registration
type Serializable struct{}

// QualifiedName is the name the generator resolves when no other marker is configured
const QualifiedName = "github.com/teranos/autojson/marker.Serializable"
