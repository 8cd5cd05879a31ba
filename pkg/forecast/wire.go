package forecast

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// RPC names of the forecast service.
const (
	ServiceName      = "weather.WeatherForecasts"
	GetForecastsName = "GetForecasts"
)

// Field numbers, matching weather.proto:
//
//	message GetForecastsRequest { int32 return_count = 1; }
//	message GetForecastsReply   { repeated WeatherForecast forecasts = 1; }
//	message WeatherForecast {
//	  google.protobuf.Timestamp date = 1;
//	  int32 temperature_c = 2;
//	  int32 temperature_f = 3;
//	  string summary = 4;
//	}
const (
	fieldReturnCount protowire.Number = 1

	fieldForecasts protowire.Number = 1

	fieldDate         protowire.Number = 1
	fieldTemperatureC protowire.Number = 2
	fieldTemperatureF protowire.Number = 3
	fieldSummary      protowire.Number = 4
)

// GetForecastsRequest asks for ReturnCount records.
type GetForecastsRequest struct {
	ReturnCount int32
}

// GetForecastsReply carries the generated records.
type GetForecastsReply struct {
	Forecasts []Record
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (r *GetForecastsRequest) MarshalBinary() ([]byte, error) {
	var b []byte
	if r.ReturnCount != 0 {
		b = protowire.AppendTag(b, fieldReturnCount, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(int64(r.ReturnCount)))
	}
	return b, nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (r *GetForecastsRequest) UnmarshalBinary(b []byte) error {
	*r = GetForecastsRequest{}
	return consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num == fieldReturnCount && typ == protowire.VarintType {
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return 0, protowire.ParseError(n)
			}
			r.ReturnCount = int32(v)
			return n, nil
		}
		return skipField(num, typ, b)
	})
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (r *GetForecastsReply) MarshalBinary() ([]byte, error) {
	var (
		b   []byte
		rec []byte
		err error
	)
	for i := range r.Forecasts {
		rec, err = appendRecord(rec[:0], &r.Forecasts[i])
		if err != nil {
			return nil, fmt.Errorf("forecast %d: %w", i, err)
		}
		b = protowire.AppendTag(b, fieldForecasts, protowire.BytesType)
		b = protowire.AppendBytes(b, rec)
	}
	return b, nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (r *GetForecastsReply) UnmarshalBinary(b []byte) error {
	*r = GetForecastsReply{}
	return consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num == fieldForecasts && typ == protowire.BytesType {
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return 0, protowire.ParseError(n)
			}
			var rec Record
			if err := decodeRecord(v, &rec); err != nil {
				return 0, fmt.Errorf("forecast %d: %w", len(r.Forecasts), err)
			}
			r.Forecasts = append(r.Forecasts, rec)
			return n, nil
		}
		return skipField(num, typ, b)
	})
}

func appendRecord(b []byte, rec *Record) ([]byte, error) {
	if !rec.Date.IsZero() {
		ts, err := proto.Marshal(timestamppb.New(rec.Date))
		if err != nil {
			return nil, err
		}
		b = protowire.AppendTag(b, fieldDate, protowire.BytesType)
		b = protowire.AppendBytes(b, ts)
	}
	if rec.TemperatureC != 0 {
		b = protowire.AppendTag(b, fieldTemperatureC, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(int64(rec.TemperatureC)))
	}
	if rec.TemperatureF != 0 {
		b = protowire.AppendTag(b, fieldTemperatureF, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(int64(rec.TemperatureF)))
	}
	if rec.Summary != "" {
		b = protowire.AppendTag(b, fieldSummary, protowire.BytesType)
		b = protowire.AppendString(b, rec.Summary)
	}
	return b, nil
}

func decodeRecord(b []byte, rec *Record) error {
	return consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == fieldDate && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return 0, protowire.ParseError(n)
			}
			var ts timestamppb.Timestamp
			if err := proto.Unmarshal(v, &ts); err != nil {
				return 0, fmt.Errorf("date: %w", err)
			}
			rec.Date = ts.AsTime()
			return n, nil
		case (num == fieldTemperatureC || num == fieldTemperatureF) && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return 0, protowire.ParseError(n)
			}
			if num == fieldTemperatureC {
				rec.TemperatureC = int32(v)
			} else {
				rec.TemperatureF = int32(v)
			}
			return n, nil
		case num == fieldSummary && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return 0, protowire.ParseError(n)
			}
			rec.Summary = v
			return n, nil
		}
		return skipField(num, typ, b)
	})
}

// consumeFields walks the tags in b and hands each field value to fn, which
// returns how many bytes of the value it consumed.
func consumeFields(b []byte, fn func(protowire.Number, protowire.Type, []byte) (int, error)) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
		n, err := fn(num, typ, b)
		if err != nil {
			return err
		}
		b = b[n:]
	}
	return nil
}

// skipField consumes an unknown field so newer servers stay readable.
func skipField(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
	n := protowire.ConsumeFieldValue(num, typ, b)
	if n < 0 {
		return 0, protowire.ParseError(n)
	}
	return n, nil
}
