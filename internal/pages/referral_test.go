package pages

import (
	"context"
	"net/http"
	"testing"
)

func TestReferralCardLoad(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/referral/me", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"referral_code":"AB23CD45","total_referrals":4,"successful_referrals":3,"remaining_referrals":1}`))
	})
	env := newEnv(t, mux, aliceProfile)
	card := NewReferralCard(env.client, env.notify, "https://anon.example")

	card.Load(context.Background())

	st := card.Stats()
	if st == nil || st.TotalReferrals != 4 || st.SuccessfulReferrals != 3 || st.RemainingReferrals != 1 {
		t.Fatalf("stats = %+v", st)
	}
	if got := card.ShareLink(); got != "https://anon.example/referral/AB23CD45" {
		t.Errorf("ShareLink = %q", got)
	}
	if card.Loading() || card.Err() != "" {
		t.Errorf("loading=%v err=%q after a successful load", card.Loading(), card.Err())
	}
}

func TestReferralCardLoadFailure(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/referral/me", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	env := newEnv(t, mux, aliceProfile)
	card := NewReferralCard(env.client, env.notify, "https://anon.example")

	card.Load(context.Background())

	if card.Err() == "" {
		t.Error("Err is empty after a failed load")
	}
	if card.ShareLink() != "" {
		t.Error("ShareLink must be empty without stats")
	}
}

func TestReferralCardNoCodeYet(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/referral/me", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"referral_code":null,"total_referrals":0,"successful_referrals":0,"remaining_referrals":5}`))
	})
	env := newEnv(t, mux, aliceProfile)
	card := NewReferralCard(env.client, env.notify, "https://anon.example")

	card.Load(context.Background())

	if st := card.Stats(); st == nil || st.ReferralCode != nil {
		t.Fatalf("stats = %+v, want loaded with no code", st)
	}
	if card.ShareLink() != "" {
		t.Error("ShareLink must be empty before a code is generated")
	}
}

func TestReferralCardGenerate(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/referral/generate", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"referral_code":"ZZ99YY88","total_referrals":0,"successful_referrals":0,"remaining_referrals":5}`))
	})
	env := newEnv(t, mux, aliceProfile)
	card := NewReferralCard(env.client, env.notify, "https://anon.example")

	if err := card.Generate(context.Background()); err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if got := card.ShareLink(); got != "https://anon.example/referral/ZZ99YY88" {
		t.Errorf("ShareLink = %q", got)
	}
	if env.notify.successCount() != 1 {
		t.Errorf("successes = %d, want 1", env.notify.successCount())
	}
}

func TestInviteValidation(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/referral/validate/GOODCODE", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"is_valid":true,"code":"GOODCODE","referrer_username":"alice","remaining_uses":2}`))
	})
	mux.HandleFunc("/referral/validate/DEADCODE", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"is_valid":false}`))
	})
	env := newEnv(t, mux, "")

	t.Run("valid code", func(t *testing.T) {
		inv := NewInvite(env.client)
		inv.Validate(context.Background(), "GOODCODE")
		v := inv.Validation()
		if v == nil || !v.IsValid || v.ReferrerUsername == nil || *v.ReferrerUsername != "alice" {
			t.Fatalf("validation = %+v", v)
		}
		if inv.Err() != "" {
			t.Errorf("Err = %q", inv.Err())
		}
		if got := inv.JoinURL("GOODCODE"); got != env.client.BaseURL()+"/referral/GOODCODE" {
			t.Errorf("JoinURL = %q", got)
		}
	})

	t.Run("dead code is an outcome, not an error", func(t *testing.T) {
		inv := NewInvite(env.client)
		inv.Validate(context.Background(), "DEADCODE")
		v := inv.Validation()
		if v == nil || v.IsValid {
			t.Fatalf("validation = %+v", v)
		}
		if inv.Err() != "This referral code is invalid or has expired." {
			t.Errorf("Err = %q", inv.Err())
		}
	})
}
