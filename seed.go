package edusiap

const (
	DefaultAdminUsername = "admin"
	DefaultAdminPassword = "admin"
	DefaultAdminRole     = "Admin"
)

// SeedAdmin creates the default administrator unless an account with
// the same username already exists. It only runs on a schema upgrade, so
// a renamed or removed admin is never brought back by a later open.
// The secret is stored as a bcrypt hash; accounts restored from plaintext
// backups still authenticate because checkPassword accepts both forms.
var SeedAdmin = Seeder{Name: "admin account", Seed: seedAdmin}

// SeedSchoolProfile creates the default school profile when none exists,
// on every open.
var SeedSchoolProfile = Seeder{Name: "school profile", Seed: seedSchoolProfile, EveryOpen: true}

func DefaultSeeders() []Seeder {
	return []Seeder{SeedAdmin, SeedSchoolProfile}
}

// DefaultSchoolProfile returns the profile stored on first start.
func DefaultSchoolProfile() M {
	return M{
		"id":             1,
		"nama_sekolah":   "Sekolah Impian Bangsa",
		"npsn":           "12345678",
		"alamat_sekolah": "Jl. Pendidikan No. 1",
		"akreditasi":     "A",
	}
}

func seedAdmin(tx *Tx, cfg *Config) (bool, error) {
	desc, ok := tx.Descriptor(CredentialsCollection)
	if !ok {
		return false, nil
	}

	if _, ok := desc.Index("username"); !ok {
		return false, nil
	}

	existing, err := findAccount(tx, DefaultAdminUsername)
	if err != nil {
		return false, err
	}

	if existing != nil {
		return false, nil
	}

	hash, err := hashPassword(DefaultAdminPassword, cfg.PasswordHashCost)
	if err != nil {
		return false, err
	}

	if _, err := tx.Add(CredentialsCollection, M{
		"username": DefaultAdminUsername,
		"password": hash,
		"role":     DefaultAdminRole,
	}); err != nil {
		return false, err
	}

	return true, nil
}

func seedSchoolProfile(tx *Tx, _ *Config) (bool, error) {
	if !tx.HasCollection(SchoolProfileCollection) {
		return false, nil
	}

	n, err := tx.Count(SchoolProfileCollection)
	if err != nil || n > 0 {
		return false, err
	}

	if _, err := tx.Put(SchoolProfileCollection, DefaultSchoolProfile()); err != nil {
		return false, err
	}

	return true, nil
}
