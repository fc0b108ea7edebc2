package query

import "strconv"

// ListID is the synthetic id shared by all list results of an entity type.
// Invalidating {Type, ListID} forces a refetch of every list view without
// knowing the shape of each cached result.
const ListID = "LIST"

// Tag labels a cached result with one entity it depends on.
type Tag struct {
	Type string
	ID   string
}

func (t Tag) String() string { return t.Type + ":" + t.ID }

// IDTag builds the tag for a single entity.
func IDTag(entityType string, id int64) Tag {
	return Tag{Type: entityType, ID: strconv.FormatInt(id, 10)}
}

// ListTag builds the synthetic list tag for an entity type.
func ListTag(entityType string) Tag {
	return Tag{Type: entityType, ID: ListID}
}

// ListTags returns the standard tag set for a list result: one tag per
// returned id plus the list tag.
func ListTags(entityType string, ids []int64) []Tag {
	tags := make([]Tag, 0, len(ids)+1)
	for _, id := range ids {
		tags = append(tags, IDTag(entityType, id))
	}
	return append(tags, ListTag(entityType))
}
