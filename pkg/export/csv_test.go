package export

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSV(t *testing.T) {
	out, err := CSV(Table{
		Headers: []string{"action", "target_id", "metadata"},
		Rows: [][]string{
			{"ASSIGN_DOI", "p-1", `{"doi":"10.ISUFST.CICT/2026.00001"}`},
			{"DELETE_PAPER"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "action,target_id,metadata\n"+
		`ASSIGN_DOI,p-1,"{""doi"":""10.ISUFST.CICT/2026.00001""}"`+"\n"+
		"DELETE_PAPER,,\n", string(out))
}

func TestCSVRejects(t *testing.T) {
	_, err := CSV(Table{})
	assert.Error(t, err)

	_, err = CSV(Table{Headers: []string{"a"}, Rows: [][]string{{"1", "2"}}})
	assert.Error(t, err)
}
