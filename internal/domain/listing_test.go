package domain

import "testing"

func TestFingerprintDeterminism(t *testing.T) {
	t.Parallel()

	a := Fingerprint("wggesucht", "8123456", "https://www.wg-gesucht.de/8123456.html")
	b := Fingerprint("wggesucht", "8123456", "https://www.wg-gesucht.de/8123456.html")
	if a != b {
		t.Fatalf("fingerprint not deterministic: %s != %s", a, b)
	}
	if len(a) != 16 {
		t.Fatalf("unexpected fingerprint length: %d", len(a))
	}
}

func TestFingerprintIgnoresCosmeticFields(t *testing.T) {
	t.Parallel()

	// Same posting, different link text after the site shuffled tracking params:
	// the id keeps the identity stable.
	a := Fingerprint("kleinanzeigen", "2711940001", "https://www.kleinanzeigen.de/s-anzeige/a")
	b := Fingerprint("kleinanzeigen", "2711940001", "https://www.kleinanzeigen.de/s-anzeige/b")
	if a != b {
		t.Fatalf("id-bearing listings should hash by id, got %s and %s", a, b)
	}
}

func TestFingerprintFallsBackToLink(t *testing.T) {
	t.Parallel()

	a := Fingerprint("immowelt", "", "https://www.immowelt.de/expose/abc")
	b := Fingerprint("immowelt", "", "https://www.immowelt.de/expose/xyz")
	if a == b {
		t.Fatal("distinct links without ids must produce distinct fingerprints")
	}
}

func TestFingerprintScopedBySource(t *testing.T) {
	t.Parallel()

	a := Fingerprint("wggesucht", "42", "")
	b := Fingerprint("immowelt", "42", "")
	if a == b {
		t.Fatal("the same raw id on different providers must not collide")
	}
}
