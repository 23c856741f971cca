package storage

import (
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"

	"github.com/example/provider-matching/internal/models"
)

const dateLayout = "2006-01-02"

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	// quick ping
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (p *PostgresStore) GetCategory(id string) (*models.ServiceCategory, error) {
	var c models.ServiceCategory
	err := p.db.QueryRow(`SELECT id, name, description FROM service_categories WHERE id=$1`, id).
		Scan(&c.ID, &c.Name, &c.Description)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (p *PostgresStore) ListCategories() ([]models.ServiceCategory, error) {
	rows, err := p.db.Query(`SELECT id, name, description FROM service_categories ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []models.ServiceCategory{}
	for rows.Next() {
		var c models.ServiceCategory
		if err := rows.Scan(&c.ID, &c.Name, &c.Description); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (p *PostgresStore) GetOfferingsByCategory(categoryID string) ([]models.Offering, error) {
	rows, err := p.db.Query(`SELECT provider_id, category_id, price_rate FROM offerings WHERE category_id=$1 ORDER BY provider_id`, categoryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []models.Offering{}
	for rows.Next() {
		var o models.Offering
		if err := rows.Scan(&o.ProviderID, &o.CategoryID, &o.PriceRate); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (p *PostgresStore) GetOffering(providerID, categoryID string) (*models.Offering, error) {
	var o models.Offering
	err := p.db.QueryRow(`SELECT provider_id, category_id, price_rate FROM offerings WHERE provider_id=$1 AND category_id=$2`, providerID, categoryID).
		Scan(&o.ProviderID, &o.CategoryID, &o.PriceRate)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

const providerCols = `id, name, experience_years, available, verified, avg_rating, lat, lon`

func scanProvider(row rowScanner) (models.ProviderProfile, error) {
	var prof models.ProviderProfile
	var avg, lat, lon sql.NullFloat64
	if err := row.Scan(&prof.ID, &prof.Name, &prof.ExperienceYears, &prof.Available, &prof.Verified, &avg, &lat, &lon); err != nil {
		return prof, err
	}
	if avg.Valid {
		v := avg.Float64
		prof.AvgRating = &v
	}
	if lat.Valid && lon.Valid {
		prof.Location = &models.Coordinate{Lat: lat.Float64, Lon: lon.Float64}
	}
	return prof, nil
}

func (p *PostgresStore) GetProvider(id string) (*models.ProviderProfile, error) {
	prof, err := scanProvider(p.db.QueryRow(`SELECT `+providerCols+` FROM providers WHERE id=$1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &prof, nil
}

func (p *PostgresStore) GetEligibleProviders(ids []string) ([]models.ProviderProfile, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := p.db.Query(`SELECT `+providerCols+` FROM providers WHERE id = ANY($1) AND available AND verified ORDER BY id`, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []models.ProviderProfile{}
	for rows.Next() {
		prof, err := scanProvider(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, prof)
	}
	return out, rows.Err()
}

func (p *PostgresStore) SetProviderAvailability(id string, available bool) error {
	res, err := p.db.Exec(`UPDATE providers SET available=$2 WHERE id=$1`, id, available)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *PostgresStore) CreateBooking(b *models.Booking) error {
	_, err := p.db.Exec(`INSERT INTO bookings(id, customer_id, provider_id, category_id, address_id, service_date, time_slot, status, created_at, updated_at)
		VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		b.ID, b.CustomerID, b.ProviderID, b.CategoryID, b.AddressID, b.Date.Format(dateLayout), b.TimeSlot, string(b.Status), b.CreatedAt, b.UpdatedAt)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" && pqErr.Constraint == "bookings_slot_guard" {
		return ErrSlotConflict
	}
	return err
}

const bookingCols = `id, customer_id, provider_id, category_id, address_id, service_date, time_slot, status, rating, rating_comment, created_at, updated_at`

func scanBooking(row rowScanner) (models.Booking, error) {
	var b models.Booking
	var status string
	var rating sql.NullInt64
	var comment sql.NullString
	if err := row.Scan(&b.ID, &b.CustomerID, &b.ProviderID, &b.CategoryID, &b.AddressID, &b.Date, &b.TimeSlot, &status, &rating, &comment, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return b, err
	}
	b.Status = models.BookingStatus(status)
	if rating.Valid {
		v := int(rating.Int64)
		b.Rating = &v
	}
	b.RatingComment = comment.String
	return b, nil
}

func (p *PostgresStore) GetBooking(id string) (*models.Booking, error) {
	b, err := scanBooking(p.db.QueryRow(`SELECT `+bookingCols+` FROM bookings WHERE id=$1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (p *PostgresStore) UpdateBookingStatus(id string, expected, next models.BookingStatus) (bool, error) {
	res, err := p.db.Exec(`UPDATE bookings SET status=$3, updated_at=now() WHERE id=$1 AND status=$2`, id, string(expected), string(next))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (p *PostgresStore) ConfirmBooking(id string, pay *models.Payment) (bool, error) {
	tx, err := p.db.Begin()
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	res, err := tx.Exec(`UPDATE bookings SET status=$2, updated_at=now() WHERE id=$1 AND status=$3`,
		id, string(models.BookingConfirmed), string(models.BookingPending))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, nil
	}
	if _, err := tx.Exec(`INSERT INTO payments(id, booking_id, amount, method, transaction_id, status, created_at) VALUES($1,$2,$3,$4,$5,$6,$7)`,
		pay.ID, pay.BookingID, pay.Amount, pay.Method, pay.TransactionID, string(pay.Status), pay.CreatedAt); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return false, ErrDuplicatePayment
		}
		return false, err
	}
	return true, tx.Commit()
}

func (p *PostgresStore) RecordRating(bookingID string, rating int, comment string) (float64, bool, error) {
	tx, err := p.db.Begin()
	if err != nil {
		return 0, false, err
	}
	defer tx.Rollback()

	var providerID, status string
	var existing sql.NullInt64
	err = tx.QueryRow(`SELECT provider_id, status, rating FROM bookings WHERE id=$1 FOR UPDATE`, bookingID).
		Scan(&providerID, &status, &existing)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, ErrNotFound
	}
	if err != nil {
		return 0, false, err
	}
	if models.BookingStatus(status) != models.BookingCompleted || existing.Valid {
		return 0, false, nil
	}

	// provider row lock serializes concurrent recomputes for one provider
	if _, err := tx.Exec(`SELECT 1 FROM providers WHERE id=$1 FOR UPDATE`, providerID); err != nil {
		return 0, false, err
	}
	if _, err := tx.Exec(`UPDATE bookings SET rating=$2, rating_comment=$3, updated_at=now() WHERE id=$1`, bookingID, rating, comment); err != nil {
		return 0, false, err
	}

	rows, err := tx.Query(`SELECT rating FROM bookings WHERE provider_id=$1 AND status=$2 AND rating IS NOT NULL`,
		providerID, string(models.BookingCompleted))
	if err != nil {
		return 0, false, err
	}
	ratings := []int{}
	for rows.Next() {
		var r int
		if err := rows.Scan(&r); err != nil {
			rows.Close()
			return 0, false, err
		}
		ratings = append(ratings, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, false, err
	}

	avg, _ := models.MeanRating(ratings)
	if _, err := tx.Exec(`UPDATE providers SET avg_rating=$2 WHERE id=$1`, providerID, avg); err != nil {
		return 0, false, err
	}
	if err := tx.Commit(); err != nil {
		return 0, false, err
	}
	return avg, true, nil
}

func (p *PostgresStore) ListCompletedRated(providerID string) ([]models.Booking, error) {
	rows, err := p.db.Query(`SELECT `+bookingCols+` FROM bookings WHERE provider_id=$1 AND status=$2 AND rating IS NOT NULL ORDER BY created_at, id`,
		providerID, string(models.BookingCompleted))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []models.Booking{}
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (p *PostgresStore) HasBookingInSlot(providerID string, date time.Time, slot string) (bool, error) {
	var exists bool
	err := p.db.QueryRow(`SELECT EXISTS(SELECT 1 FROM bookings WHERE provider_id=$1 AND service_date=$2 AND time_slot=$3 AND status IN ($4,$5))`,
		providerID, date.Format(dateLayout), slot, string(models.BookingPending), string(models.BookingConfirmed)).Scan(&exists)
	return exists, err
}

func (p *PostgresStore) CreatePayment(pay *models.Payment) error {
	_, err := p.db.Exec(`INSERT INTO payments(id, booking_id, amount, method, transaction_id, status, created_at) VALUES($1,$2,$3,$4,$5,$6,$7)`,
		pay.ID, pay.BookingID, pay.Amount, pay.Method, pay.TransactionID, string(pay.Status), pay.CreatedAt)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return ErrDuplicatePayment
	}
	return err
}

func (p *PostgresStore) GetPaymentByBooking(bookingID string) (*models.Payment, error) {
	var pay models.Payment
	var status string
	err := p.db.QueryRow(`SELECT id, booking_id, amount, method, transaction_id, status, created_at FROM payments WHERE booking_id=$1`, bookingID).
		Scan(&pay.ID, &pay.BookingID, &pay.Amount, &pay.Method, &pay.TransactionID, &status, &pay.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	pay.Status = models.PaymentStatus(status)
	return &pay, nil
}
