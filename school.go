package edusiap

// SchoolSchemaVersion is the schema version the school registry belongs to.
const SchoolSchemaVersion = 5

// CredentialsCollection holds operator accounts. Partial imports never touch it.
const CredentialsCollection = "users"

const SchoolProfileCollection = "sekolah"

func autoKeyed(name string, indexes ...IndexDescriptor) CollectionDescriptor {
	return CollectionDescriptor{Name: name, KeyPath: "id", AutoIncrement: true, Indexes: indexes}
}

func field(name string) IndexDescriptor {
	return IndexDescriptor{Name: name, KeyPath: name}
}

func uniqueField(name string) IndexDescriptor {
	return IndexDescriptor{Name: name, KeyPath: name, Unique: true}
}

// SchoolRegistry declares every collection of the school administration app.
func SchoolRegistry() *Registry {
	return MustRegistry(
		CollectionDescriptor{Name: SchoolProfileCollection, KeyPath: "id"},
		autoKeyed(CredentialsCollection, uniqueField("username")),
		autoKeyed("ptk", field("nama"), field("nuptk")),
		autoKeyed("siswa", field("nama"), field("nisn"), field("kelasId")),
		autoKeyed("mutasi"),
		autoKeyed("alumni", field("nama")),
		autoKeyed("suratMasuk"),
		autoKeyed("suratKeluar"),
		autoKeyed("inventaris", field("nama"), field("lokasi"), field("kondisi")),
		autoKeyed("stokHarian", field("nama")),
		autoKeyed("spp", field("nama_siswa")),
		autoKeyed("infaq"),
		autoKeyed("gaji", field("nama_guru")),
		autoKeyed("pengeluaran"),
		autoKeyed("mapel", uniqueField("kode_mapel")),
		autoKeyed("kelas", field("nama_kelas")),
		autoKeyed("nilai", field("siswaId"), field("mapelId"), field("jenis")),
		CollectionDescriptor{Name: "identitasRapor", KeyPath: "id"},
		autoKeyed("spmb"),
		autoKeyed("jadwal", field("kelasId"), field("hari")),
		autoKeyed("gajiInfal"),
		autoKeyed("gajiCatatan"),
	)
}
