package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retroryan/shopledger/internal/config"
)

const testCatalog = `products:
  - { id: widget, name: Widget, price: 25.00, stock: 10 }
  - { id: gadget, name: Gadget, price: 50.00, stock: 4 }
`

// shopEnv is a throwaway database plus catalog for driving the root command.
type shopEnv struct {
	t  *testing.T
	db string
}

func newShopEnv(t *testing.T) *shopEnv {
	t.Helper()
	for _, key := range []string{
		config.EnvDatabase, config.EnvKafkaBrokers, config.EnvOtelEndpoint,
		config.EnvAbandonAfter, config.EnvSweepInterval,
	} {
		t.Setenv(key, "")
	}

	dir := t.TempDir()
	catalogPath := filepath.Join(dir, "catalog.yaml")
	require.NoError(t, os.WriteFile(catalogPath, []byte(testCatalog), 0644))

	env := &shopEnv{t: t, db: filepath.Join(dir, "shop.db")}
	res, err := env.run("init", "--catalog", catalogPath)
	require.NoError(t, err)
	assert.Equal(t, "success", res["status"])
	return env
}

// run executes shopctl with --format json against the env's database and
// decodes the printed result.
func (e *shopEnv) run(args ...string) (map[string]any, error) {
	e.t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append([]string{"--format", "json", "--db", e.db}, args...))
	err := cmd.Execute()

	var res map[string]any
	if buf.Len() > 0 {
		require.NoError(e.t, json.Unmarshal(buf.Bytes(), &res), buf.String())
	}
	return res, err
}

func data(t *testing.T, res map[string]any) map[string]any {
	t.Helper()
	d, ok := res["data"].(map[string]any)
	require.True(t, ok, "result has no data object: %v", res)
	return d
}

func TestCommands_InitSeedsInventory(t *testing.T) {
	env := newShopEnv(t)

	res, err := env.run("inventory", "status", "widget")
	require.NoError(t, err)
	d := data(t, res)
	assert.Equal(t, float64(10), d["stock"])
	assert.Equal(t, float64(0), d["reserved"])

	res, err = env.run("inventory", "restock", "widget", "5")
	require.NoError(t, err)
	assert.Equal(t, float64(15), data(t, res)["stock"])
}

func TestCommands_CartToCheckout(t *testing.T) {
	env := newShopEnv(t)

	res, err := env.run("cart", "add", "--user", "u1", "--product", "widget", "--qty", "3")
	require.NoError(t, err)
	cart := data(t, res)["cart"].(map[string]any)
	assert.Equal(t, float64(75), cart["total"])

	_, err = env.run("cart", "add", "--user", "u1", "--product", "gadget")
	require.NoError(t, err)

	res, err = env.run("checkout", "--user", "u1", "--address", "1 Main St")
	require.NoError(t, err)
	order := data(t, res)
	assert.Equal(t, "pending", order["status"])
	assert.Equal(t, float64(125), order["total"])
	orderID, _ := order["order_id"].(string)
	assert.Regexp(t, `^ord_`, orderID)

	res, err = env.run("inventory", "status", "widget")
	require.NoError(t, err)
	d := data(t, res)
	assert.Equal(t, float64(7), d["stock"])
	assert.Equal(t, float64(0), d["reserved"])

	res, err = env.run("order", "get", orderID, "--user", "u1")
	require.NoError(t, err)
	assert.Equal(t, orderID, data(t, res)["order_id"])
}

func TestCommands_CartLineQuantityDefaults(t *testing.T) {
	env := newShopEnv(t)

	res, err := env.run("cart", "add", "--user", "u1", "--product", "widget")
	require.NoError(t, err)
	cart := data(t, res)["cart"].(map[string]any)
	assert.Equal(t, float64(1), cart["item_count"])

	_, err = env.run("cart", "add", "--user", "u1", "--product", "widget", "--qty", "2")
	require.NoError(t, err)

	// remove without --qty drops the whole line
	res, err = env.run("cart", "remove", "--user", "u1", "--product", "widget")
	require.NoError(t, err)
	cart = data(t, res)["cart"].(map[string]any)
	assert.Equal(t, float64(0), cart["item_count"])

	res, err = env.run("inventory", "status", "widget")
	require.NoError(t, err)
	assert.Equal(t, float64(0), data(t, res)["reserved"])
}

func TestCommands_RejectionExitsWithFailure(t *testing.T) {
	env := newShopEnv(t)

	res, err := env.run("cart", "add", "--user", "u1", "--product", "gadget", "--qty", "9")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.True(t, Reported(err))

	assert.Equal(t, "failed", res["status"])
	assert.Equal(t, "INSUFFICIENT_STOCK", res["code"])
	details := res["details"].(map[string]any)
	assert.Equal(t, float64(4), details["available_stock"])
}

func TestCommands_UnknownProduct(t *testing.T) {
	env := newShopEnv(t)

	res, err := env.run("inventory", "status", "nope")
	require.Error(t, err)
	assert.Equal(t, "PRODUCT_NOT_FOUND", res["code"])
}

func TestCommands_InvalidRestockQuantity(t *testing.T) {
	env := newShopEnv(t)

	_, err := env.run("inventory", "restock", "widget", "many")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.False(t, Reported(err))
}

func TestCommands_SweepOnce(t *testing.T) {
	env := newShopEnv(t)

	_, err := env.run("cart", "add", "--user", "u1", "--product", "widget")
	require.NoError(t, err)

	// Fresh carts are not abandoned
	res, err := env.run("sweep", "--older-than", "1h")
	require.NoError(t, err)
	assert.Equal(t, float64(0), data(t, res)["carts_abandoned"])
}

func TestCommands_BadConfigFile(t *testing.T) {
	env := newShopEnv(t)
	path := filepath.Join(t.TempDir(), "shop.yaml")
	require.NoError(t, os.WriteFile(path, []byte("databse: typo.db\n"), 0644))

	_, err := env.run("--config", path, "inventory", "list")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "failed to load config")
}
