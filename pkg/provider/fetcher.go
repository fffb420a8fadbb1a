package provider

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/digiscan/dumpcontact/pkg/core"
	"github.com/digiscan/dumpcontact/pkg/logger"
)

// NoName is the display name used for contacts without one.
const NoName = "N/A"

// Fetcher projects provider rows into records.
type Fetcher struct {
	Source   Source
	Location *time.Location // Zone for Date columns; nil = local
	SDK      int            // Platform level used for call type labels
}

// NewFetcher creates a Fetcher over source.
func NewFetcher(source Source, loc *time.Location, sdk int) *Fetcher {
	return &Fetcher{Source: source, Location: loc, SDK: sdk}
}

// Fetch reads every record of kind. Failures, panics included, come back as
// an empty result with a read error; they are never propagated.
func (f *Fetcher) Fetch(ctx context.Context, kind core.Kind) (res core.FetchResult) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Fetch %s panicked: %v", kind, r)
			res = core.FetchResult{Kind: kind, Err: readError(kind, fmt.Errorf("panic: %v", r))}
		}
	}()

	start := time.Now()
	var records []core.Record
	var err error
	switch kind {
	case core.KindCallLog:
		records, err = f.fetchCallLog(ctx)
	case core.KindSMS:
		records, err = f.fetchSMS(ctx)
	case core.KindContacts:
		records, err = f.fetchContacts(ctx)
	default:
		err = fmt.Errorf("unsupported kind %d", kind)
	}

	if err != nil {
		logger.Error("Fetch %s failed: %v", kind, err)
		return core.FetchResult{Kind: kind, Err: readError(kind, err)}
	}
	logger.Info("Fetched %d %s records in %s", len(records), kind, time.Since(start).Round(time.Millisecond))
	return core.FetchResult{Kind: kind, Records: records}
}

func readError(kind core.Kind, err error) error {
	label := kind.Noun()
	if errors.Is(err, ErrAccessDenied) {
		return core.ErrReadFailed.
			WithMessage(fmt.Sprintf("Error reading %s: Permission denied.", label)).
			WithCause(err)
	}
	return core.ErrReadFailed.
		WithMessage(fmt.Sprintf("Error reading %s: %v", label, err)).
		WithCause(err)
}

// each runs q and calls fn per row. The cursor is closed before each returns,
// on every path.
func (f *Fetcher) each(ctx context.Context, q Query, fn func(Row) error) error {
	cur, err := f.Source.Query(ctx, q)
	if err != nil {
		return fmt.Errorf("query %s: %w", q.URI, err)
	}
	defer cur.Close()

	for cur.Next() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(cur.Row()); err != nil {
			return err
		}
	}
	if err := cur.Err(); err != nil {
		return fmt.Errorf("read %s: %w", q.URI, err)
	}
	return nil
}

func (f *Fetcher) fetchCallLog(ctx context.Context) ([]core.Record, error) {
	q := Query{
		URI:        URICallLog,
		Projection: []string{ColNumber, ColCachedName, ColType, ColDate, ColDuration},
		Sort:       SortCallLog,
	}

	var records []core.Record
	err := f.each(ctx, q, func(row Row) error {
		typeCode, err := row.Int64(ColType)
		if err != nil {
			return fmt.Errorf("call type: %w", err)
		}
		millis, err := row.Int64(ColDate)
		if err != nil {
			return fmt.Errorf("call date: %w", err)
		}
		duration, err := row.Int64(ColDuration)
		if err != nil {
			return fmt.Errorf("call duration: %w", err)
		}

		records = append(records, core.NewKindRecord(core.KindCallLog, map[string]string{
			core.ColNumber:     row.String(ColNumber),
			core.ColCachedName: row.String(ColCachedName),
			core.ColType:       CallTypeLabel(typeCode, f.SDK),
			core.ColDate:       FormatDate(millis, f.Location),
			core.ColDuration:   strconv.FormatInt(duration, 10),
		}))
		return nil
	})
	return records, err
}

func (f *Fetcher) fetchSMS(ctx context.Context) ([]core.Record, error) {
	q := Query{
		URI:        URISMS,
		Projection: []string{ColAddress, ColBody, ColDate, ColType},
		Sort:       SortSMS,
	}

	var records []core.Record
	err := f.each(ctx, q, func(row Row) error {
		millis, err := row.Int64(ColDate)
		if err != nil {
			return fmt.Errorf("sms date: %w", err)
		}
		typeCode, err := row.Int64(ColType)
		if err != nil {
			return fmt.Errorf("sms type: %w", err)
		}

		records = append(records, core.NewKindRecord(core.KindSMS, map[string]string{
			core.ColAddress: row.String(ColAddress),
			core.ColBody:    MarkBodyNewlines(row.String(ColBody)),
			core.ColDate:    FormatDate(millis, f.Location),
			core.ColType:    SMSTypeLabel(typeCode),
		}))
		return nil
	})
	return records, err
}

func (f *Fetcher) fetchContacts(ctx context.Context) ([]core.Record, error) {
	q := Query{
		URI:        URIContacts,
		Projection: []string{ColID, ColDisplayName, ColHasPhoneNumber},
		Sort:       SortContacts,
	}

	var records []core.Record
	err := f.each(ctx, q, func(row Row) error {
		id := row.String(ColID)
		name := NoName
		if v := row.Nullable(ColDisplayName); v != nil {
			name = *v
		}
		hasPhone, err := row.Int64(ColHasPhoneNumber)
		if err != nil {
			return fmt.Errorf("has_phone_number: %w", err)
		}

		var phones []string
		if hasPhone > 0 {
			phones, err = f.collect(ctx, URIPhones, id)
			if err != nil {
				return err
			}
		}
		emails, err := f.collect(ctx, URIEmails, id)
		if err != nil {
			return err
		}

		records = append(records, core.NewKindRecord(core.KindContacts, map[string]string{
			core.ColName:         name,
			core.ColPhoneNumbers: strings.Join(phones, "; "),
			core.ColEmails:       strings.Join(emails, "; "),
		}))
		return nil
	})
	return records, err
}

// collect gathers data1 of every data row of uri that belongs to contactID.
func (f *Fetcher) collect(ctx context.Context, uri, contactID string) ([]string, error) {
	q := Query{
		URI:        uri,
		Projection: []string{ColData1},
		Where:      map[string]string{ColContactID: contactID},
	}

	var values []string
	err := f.each(ctx, q, func(row Row) error {
		values = append(values, row.String(ColData1))
		return nil
	})
	return values, err
}
