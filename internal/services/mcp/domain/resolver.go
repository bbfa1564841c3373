package domain

import (
	"context"
	"fmt"
	"strings"

	"github.com/louisbranch/spliit-mcp/internal/groups"
)

// UnknownMemberNameError reports the first display name that could not be
// resolved against the group's member snapshot.
type UnknownMemberNameError struct {
	Name string
}

func (e *UnknownMemberNameError) Error() string {
	return fmt.Sprintf("unknown member name %q", e.Name)
}

// ResolveNames maps display names to stable member identifiers. The member
// snapshot is fetched once per call and never cached; the caller may have
// added members since the last read. Lookup is case-insensitive. Duplicate
// display names in the snapshot collapse last-write-wins. Resolution stops at
// the first miss rather than returning a partial mapping.
func ResolveNames(ctx context.Context, svc groups.Service, groupID string, names []string) (map[string]string, error) {
	members, err := svc.ListMembers(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}

	index := make(map[string]string, len(members))
	for _, m := range members {
		index[strings.ToLower(m.Name)] = m.ID
	}

	resolved := make(map[string]string, len(names))
	for _, name := range names {
		id, ok := index[strings.ToLower(name)]
		if !ok {
			return nil, &UnknownMemberNameError{Name: name}
		}
		resolved[name] = id
	}
	return resolved, nil
}
