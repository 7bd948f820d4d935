package plan

import (
	"io/ioutil"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const deployPlan = `
name: deploy
retries: 2
retry_interval: 10ms
nodes:
  - id: db
    reinstall_retries: 1
    operations:
      - local: record
        args:
          step: create
      - parallel:
          - local: record
          - remote:
              queue: agents
              target: configure
            args:
              port: "5432"
  - id: web
    depends_on: [db]
    retries: 5
    retry_interval: 1s
    operations:
      - local: record
`

func TestParse(t *testing.T) {
	require := require.New(t)

	p, err := Parse([]byte(deployPlan))
	require.NoError(err)

	require.Equal("deploy", p.Name)
	require.Equal(2, *p.Retries)
	require.Equal(10*time.Millisecond, p.RetryInterval)
	require.Len(p.Nodes, 2)

	db := p.Nodes[0]
	require.Equal(1, db.ReinstallRetries)
	require.Nil(db.Retries)
	require.Equal(map[string]string{"step": "create"}, db.Operations[0].Args)
	require.Len(db.Operations[1].Parallel, 2)
	require.Equal("agents/configure", db.Operations[1].Parallel[1].Name())
	require.Equal("parallel", db.Operations[1].Name())

	web := p.Nodes[1]
	require.Equal([]string{"db"}, web.DependsOn)
	require.Equal(5, *web.Retries)
	require.Equal(time.Second, web.RetryInterval)
}

func TestLoad(t *testing.T) {
	require := require.New(t)

	f := filepath.Join(t.TempDir(), "plan.yaml")
	require.NoError(ioutil.WriteFile(f, []byte(deployPlan), 0644))

	p, err := Load(f)
	require.NoError(err)
	require.Equal("deploy", p.Name)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(err)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		desc string
		plan string
	}{
		{"malformed yaml", "name: [x"},
		{"missing name", `
nodes:
  - id: a
    operations: [{local: x}]
`},
		{"no nodes", "name: x"},
		{"node without id", `
name: x
nodes:
  - operations: [{local: x}]
`},
		{"node without operations", `
name: x
nodes:
  - id: a
`},
		{"duplicate node", `
name: x
nodes:
  - id: a
    operations: [{local: x}]
  - id: a
    operations: [{local: x}]
`},
		{"unknown dependency", `
name: x
nodes:
  - id: a
    depends_on: [b]
    operations: [{local: x}]
`},
		{"self dependency", `
name: x
nodes:
  - id: a
    depends_on: [a]
    operations: [{local: x}]
`},
		{"cycle", `
name: x
nodes:
  - id: a
    depends_on: [c]
    operations: [{local: x}]
  - id: b
    depends_on: [a]
    operations: [{local: x}]
  - id: c
    depends_on: [b]
    operations: [{local: x}]
`},
		{"local and remote", `
name: x
nodes:
  - id: a
    operations:
      - local: x
        remote: {queue: q, target: t}
`},
		{"empty operation", `
name: x
nodes:
  - id: a
    operations:
      - args: {k: v}
`},
		{"remote without target", `
name: x
nodes:
  - id: a
    operations:
      - remote: {queue: q}
`},
		{"nested parallel", `
name: x
nodes:
  - id: a
    operations:
      - parallel:
          - parallel:
              - local: x
`},
		{"negative reinstall retries", `
name: x
nodes:
  - id: a
    reinstall_retries: -1
    operations: [{local: x}]
`},
	}
	for _, test := range tests {
		t.Run(test.desc, func(t *testing.T) {
			_, err := Parse([]byte(test.plan))
			require.Error(t, err)
		})
	}
}

func TestParseCycleMessage(t *testing.T) {
	_, err := Parse([]byte(`
name: x
nodes:
  - id: a
    depends_on: [b]
    operations: [{local: x}]
  - id: b
    depends_on: [a]
    operations: [{local: x}]
`))
	require.EqualError(t, err, "dependency cycle: [a b a]")
}
