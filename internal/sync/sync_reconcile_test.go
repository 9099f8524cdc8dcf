package sync

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/lostsignal/bunnysync/internal/hasher"
	"github.com/lostsignal/bunnysync/internal/manifest"
	"github.com/stretchr/testify/assert"
)

func fp(content string) string {
	return hasher.Sum([]byte(content))
}

func TestReconcile_TableDriven(t *testing.T) {
	cases := []struct {
		name          string
		local, remote manifest.Manifest
		uploads       []string
		deletes       []string
		unchanged     []string
	}{
		{
			name: "both empty",
		},
		{
			name:    "new local file uploads",
			local:   manifest.Manifest{"a.txt": fp("a")},
			remote:  manifest.Manifest{},
			uploads: []string{"a.txt"},
		},
		{
			name:      "same fingerprint is unchanged",
			local:     manifest.Manifest{"a.txt": fp("a")},
			remote:    manifest.Manifest{"a.txt": fp("a")},
			unchanged: []string{"a.txt"},
		},
		{
			name:      "fingerprint case does not matter",
			local:     manifest.Manifest{"a.txt": fp("a")},
			remote:    manifest.Manifest{"a.txt": strings.ToLower(fp("a"))},
			unchanged: []string{"a.txt"},
		},
		{
			name:    "changed content uploads",
			local:   manifest.Manifest{"a.txt": fp("a2")},
			remote:  manifest.Manifest{"a.txt": fp("a")},
			uploads: []string{"a.txt"},
		},
		{
			name:    "removed locally deletes",
			local:   manifest.Manifest{},
			remote:  manifest.Manifest{"old.txt": fp("old")},
			deletes: []string{"old.txt"},
		},
		{
			name:      "mixed",
			local:     manifest.Manifest{"a.txt": fp("a3"), "keep.txt": fp("k"), "new/b.txt": fp("b")},
			remote:    manifest.Manifest{"a.txt": fp("a"), "keep.txt": fp("k"), "old.txt": fp("old")},
			uploads:   []string{"a.txt", "new/b.txt"},
			deletes:   []string{"old.txt"},
			unchanged: []string{"keep.txt"},
		},
		{
			name:    "paths are case sensitive",
			local:   manifest.Manifest{"A.txt": fp("a")},
			remote:  manifest.Manifest{"a.txt": fp("a")},
			uploads: []string{"A.txt"},
			deletes: []string{"a.txt"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ops := Reconcile(tc.local, tc.remote)

			assert.ElementsMatch(t, tc.uploads, keys(ops.Uploads))
			assert.ElementsMatch(t, tc.deletes, keys(ops.Deletes))
			assert.ElementsMatch(t, tc.unchanged, keys(ops.Unchanged))
			assert.Equal(t, len(tc.uploads)+len(tc.deletes) > 0, ops.HasChanges())

			for p, op := range ops.Uploads {
				assert.Equal(t, OpUpload, op.Type)
				assert.Equal(t, p, op.RelPath)
				assert.Equal(t, tc.local[p], op.Fingerprint)
			}
			for p, op := range ops.Deletes {
				assert.Equal(t, OpDelete, op.Type)
				assert.Equal(t, tc.remote[p], op.Fingerprint)
			}
		})
	}
}

func TestReconcile_DoesNotMutateInputs(t *testing.T) {
	local := manifest.Manifest{"a.txt": fp("a"), "b.txt": fp("b")}
	remote := manifest.Manifest{"b.txt": fp("x"), "c.txt": fp("c")}
	localCopy, remoteCopy := local.Clone(), remote.Clone()

	Reconcile(local, remote)

	assert.Equal(t, localCopy, local)
	assert.Equal(t, remoteCopy, remote)
}

// every path lands in exactly one bucket and the buckets match the diff definition
func TestReconcile_Completeness(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))

	for iter := range 50 {
		local, remote := manifest.New(), manifest.New()
		for i := range 40 {
			p := fmt.Sprintf("dir%d/file%d.txt", i%5, i)
			switch rng.IntN(4) {
			case 0:
				local[p] = fp(p)
			case 1:
				remote[p] = fp(p)
			case 2:
				local[p] = fp(p)
				remote[p] = fp(p)
			case 3:
				local[p] = fp(p + "new")
				remote[p] = fp(p)
			}
		}

		ops := Reconcile(local, remote)

		for p, lfp := range local {
			rfp, inRemote := remote[p]
			if !inRemote || rfp != lfp {
				assert.Contains(t, ops.Uploads, p, "iteration %d", iter)
				assert.NotContains(t, ops.Unchanged, p)
			} else {
				assert.Contains(t, ops.Unchanged, p)
				assert.NotContains(t, ops.Uploads, p)
			}
			assert.NotContains(t, ops.Deletes, p)
		}
		for p := range remote {
			if _, inLocal := local[p]; !inLocal {
				assert.Contains(t, ops.Deletes, p)
			}
		}
		assert.Equal(t, len(local), len(ops.Uploads)+len(ops.Unchanged))

		// reconciling a manifest against itself is always a no-op
		assert.False(t, Reconcile(local, local.Clone()).HasChanges())
	}
}

func TestReconcileOperations_Actions(t *testing.T) {
	ops := Reconcile(
		manifest.Manifest{"z.txt": fp("z"), "a.txt": fp("a"), "m/n.txt": fp("n")},
		manifest.Manifest{"y-old.txt": fp("y"), "b-old.txt": fp("b")},
	)

	var got []string
	for _, op := range ops.Actions() {
		got = append(got, string(op.Type)+":"+op.RelPath)
	}
	assert.Equal(t, []string{
		"Upload:a.txt",
		"Upload:m/n.txt",
		"Upload:z.txt",
		"Delete:b-old.txt",
		"Delete:y-old.txt",
	}, got)

	assert.Empty(t, NewReconcileOperations().Actions())
}

func keys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
