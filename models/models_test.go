package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func TestNewPoint_LongitudeFirst(t *testing.T) {
	loc := NewPoint(12.5, 55.7, "Main St", "Copenhagen")

	assert.Equal(t, PointType, loc.Type)
	assert.Equal(t, []float64{12.5, 55.7}, loc.Coordinates)
	assert.Equal(t, 12.5, loc.Longitude())
	assert.Equal(t, 55.7, loc.Latitude())
}

func TestLocation_ShortCoordinates(t *testing.T) {
	var loc Location
	assert.Equal(t, 0.0, loc.Longitude())
	assert.Equal(t, 0.0, loc.Latitude())
}

func TestUserRating_UnmarshalBSON(t *testing.T) {
	tests := []struct {
		name string
		doc  bson.M
		want UserRating
	}{
		{
			name: "numeric fields",
			doc:  bson.M{"aggregate_rating": 4.5, "rating_text": "Excellent", "votes": int32(120)},
			want: UserRating{AggregateRating: 4.5, RatingText: "Excellent", Votes: 120},
		},
		{
			name: "legacy string fields",
			doc:  bson.M{"aggregate_rating": "3.9", "rating_text": "Good", "votes": "87"},
			want: UserRating{AggregateRating: 3.9, RatingText: "Good", Votes: 87},
		},
		{
			name: "garbage strings become zero",
			doc:  bson.M{"aggregate_rating": "n/a", "votes": "many"},
			want: UserRating{},
		},
		{
			name: "int64 votes",
			doc:  bson.M{"votes": int64(9)},
			want: UserRating{Votes: 9},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := bson.Marshal(bson.M{"user_rating": tt.doc})
			require.NoError(t, err)

			var r Restaurant
			require.NoError(t, bson.Unmarshal(data, &r))
			assert.Equal(t, tt.want, r.UserRating)
		})
	}
}
