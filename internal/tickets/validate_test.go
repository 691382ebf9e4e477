package tickets

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateCreation(t *testing.T) {
	tests := []struct {
		name    string
		res     *CreationResult
		wantErr string
	}{
		{name: "nil", res: nil, wantErr: "malformed create response: nil result"},
		{name: "success", res: &CreationResult{Success: true, TicketID: "JIRA-1000"}},
		{name: "success without id", res: &CreationResult{Success: true}, wantErr: "malformed create response: success without ticket id"},
		{name: "failure with error", res: &CreationResult{Error: "nope"}},
		{name: "failure without error", res: &CreationResult{}, wantErr: "malformed create response: failure without error text"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCreation(tt.res)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.EqualError(t, err, tt.wantErr)
			var merr *MalformedResponseError
			assert.True(t, errors.As(err, &merr))
		})
	}
}

func TestValidateQuery(t *testing.T) {
	rec := Record{ID: "JIRA-1000", Summary: "s", Status: "Open"}
	tests := []struct {
		name    string
		res     *QueryResult
		wantErr string
	}{
		{name: "nil", res: nil, wantErr: "malformed query response: nil result"},
		{name: "failure with error", res: &QueryResult{Error: "bad"}},
		{name: "failure without error", res: &QueryResult{}, wantErr: "malformed query response: failure without error text"},
		{name: "success no data", res: &QueryResult{Success: true}},
		{name: "single record", res: &QueryResult{Success: true, Data: SingleRecord(rec)}},
		{name: "single record without id", res: &QueryResult{Success: true, Data: SingleRecord(Record{Summary: "x"})}, wantErr: "malformed query response: record without id"},
		{name: "single without record", res: &QueryResult{Success: true, Data: &QueryData{}}, wantErr: "malformed query response: single-record data without a record"},
		{name: "list", res: &QueryResult{Success: true, Data: RecordList([]Record{rec, rec})}},
		{name: "empty list with message", res: &QueryResult{Success: true, Data: RecordList(nil), Message: "No tickets found."}},
		{name: "empty list without message", res: &QueryResult{Success: true, Data: RecordList([]Record{})}, wantErr: "malformed query response: empty result set without a message"},
		{name: "list record without id", res: &QueryResult{Success: true, Data: RecordList([]Record{rec, {Summary: "x"}})}, wantErr: "malformed query response: record 1 without id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateQuery(tt.res)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.EqualError(t, err, tt.wantErr)
		})
	}
}

func TestQueryDataAccessors(t *testing.T) {
	var nilData *QueryData
	assert.False(t, nilData.IsList())
	assert.Nil(t, nilData.Record())
	assert.Nil(t, nilData.Records())

	single := SingleRecord(Record{ID: "JIRA-1"})
	assert.False(t, single.IsList())
	assert.Equal(t, "JIRA-1", single.Record().ID)
	assert.Nil(t, single.Records())

	src := []Record{{ID: "JIRA-1"}}
	list := RecordList(src)
	src[0].ID = "changed"
	assert.True(t, list.IsList())
	assert.Nil(t, list.Record())
	assert.Equal(t, "JIRA-1", list.Records()[0].ID)
}
