package wallet

import (
	"bytes"
	"encoding/hex"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tyler-smith/go-bip39"

	"github.com/OKaluzny/wallet-init/internal/entropy"
	"github.com/OKaluzny/wallet-init/internal/hdkey"
	"github.com/OKaluzny/wallet-init/internal/hsm"
	"github.com/OKaluzny/wallet-init/internal/seal"
	"github.com/OKaluzny/wallet-init/pkg/models"
)

// BIP-32 test vector 3 and its m/0H extended public key.
const (
	vectorSeedHex = "4b381541583be4423346c643850da4b320e46a87ae3d2a4e6da11eba819cd4ac" +
		"ba45d239319ac14f863b8d5ab5a0d0c64d2e8a1e7d1457df2e5a3c51c73235be"
	vectorXpub = "xpub68NZiKmJWnxxS6aaHmn81bvJeTESw724CRDs6HbuccFQN9Ku14VQrADWgqbhhTHBaohPX4CjNLf9fq9MYo6oDaPPLPxSb7gwQN3ih19Zm4Y"
)

// fixedDriver is a hardware module that always returns the same bytes,
// whatever length was requested.
type fixedDriver struct {
	data  []byte
	calls int
}

func (d *fixedDriver) Transact(cmd *hsm.Command, replyBuf []byte) (*hsm.Reply, error) {
	d.calls++
	n := copy(replyBuf, d.data)
	return hsm.NewReply(hsm.StatusOK, replyBuf[:n], nil), nil
}

func (d *fixedDriver) Close() error { return nil }

// fakeEntropy hands out canned bytes and keeps the buffer it filled.
type fakeEntropy struct {
	fill  byte
	err   error
	calls int
	buf   []byte
}

func (f *fakeEntropy) GenerateRandom(dst []byte) error {
	f.calls++
	f.buf = dst
	if f.err != nil {
		return f.err
	}
	for i := range dst {
		dst[i] = f.fill
	}
	return nil
}

type fakeMixer struct {
	err   error
	calls int
}

func (m *fakeMixer) Mix(seed, host []byte) error {
	m.calls++
	if m.err != nil {
		return m.err
	}
	return entropy.NewXORMixer().Mix(seed, host)
}

type fakeDeriver struct {
	err   error
	calls int
	seeds [][]byte
}

func (d *fakeDeriver) Derive(seed []byte, network models.Network) (*hdkey.ExtendedPublicKey, error) {
	d.calls++
	d.seeds = append(d.seeds, seed)
	if d.err != nil {
		return nil, d.err
	}
	return &hdkey.ExtendedPublicKey{Serialized: "xpub-fake", RootFingerprint: 0xdeadbeef}, nil
}

// fakeSealer fails on the failOn-th call (1-based) and keeps references to
// every plaintext it was given.
type fakeSealer struct {
	failOn     int
	err        error
	calls      int
	purposes   []models.Purpose
	plaintexts [][]byte
}

func (s *fakeSealer) Seal(purpose models.Purpose, plaintext []byte) (*models.SealedEnvelope, error) {
	s.calls++
	s.purposes = append(s.purposes, purpose)
	s.plaintexts = append(s.plaintexts, plaintext)
	if s.calls == s.failOn {
		return nil, s.err
	}
	return &models.SealedEnvelope{
		Version:    1,
		Purpose:    purpose,
		KeyID:      "fake",
		Ciphertext: bytes.Clone(plaintext),
	}, nil
}

type transition struct {
	from, to State
	err      error
}

type recordingObserver struct {
	transitions []transition
}

func (o *recordingObserver) Transition(from, to State, err error) {
	o.transitions = append(o.transitions, transition{from, to, err})
}

func (o *recordingObserver) states() []State {
	out := make([]State, 0, len(o.transitions))
	for _, tr := range o.transitions {
		out = append(out, tr.to)
	}
	return out
}

func (o *recordingObserver) last() transition {
	return o.transitions[len(o.transitions)-1]
}

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	require.NoError(t, err)
	return b
}

func xorBytes(a, b []byte) []byte {
	out := make([]byte, len(a))
	for i := range a {
		out[i] = a[i] ^ b[i]
	}
	return out
}

func hardwareStub() []byte {
	b := make([]byte, 64)
	for i := range b {
		b[i] = byte(i*7 + 3)
	}
	return b
}

type fixture struct {
	entropy     *fakeEntropy
	mixer       *fakeMixer
	deriver     *fakeDeriver
	sealer      *fakeSealer
	observer    *recordingObserver
	initializer *Initializer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		entropy:  &fakeEntropy{fill: 0x3c},
		mixer:    &fakeMixer{},
		deriver:  &fakeDeriver{},
		sealer:   &fakeSealer{},
		observer: &recordingObserver{},
	}
	initializer, err := NewInitializer(models.ModeProduction, Dependencies{
		Entropy:  f.entropy,
		Mixer:    f.mixer,
		Deriver:  f.deriver,
		Sealer:   f.sealer,
		Observer: f.observer,
	})
	require.NoError(t, err)
	f.initializer = initializer
	return f
}

func productionRequest() models.InitRequest {
	return models.InitRequest{
		HostEntropy: bytes.Repeat([]byte{0xa5}, 64),
		Network:     models.NetworkMainnet,
	}
}

func TestInit_EndToEndVector(t *testing.T) {
	hw := hardwareStub()
	seed := mustHex(t, vectorSeedHex)
	host := xorBytes(seed, hw)

	driver := &fixedDriver{data: hw}
	session := hsm.Open(driver, nil)
	defer session.Close()

	deriver, err := hdkey.NewDeriver(hdkey.Bip32Library{}, hdkey.CurveSecp256k1, 64)
	require.NoError(t, err)
	sealer, err := seal.NewAEADSealer(bytes.Repeat([]byte{0x42}, seal.KeySize))
	require.NoError(t, err)
	observer := &recordingObserver{}

	initializer, err := NewInitializer(models.ModeProduction, Dependencies{
		Entropy:  hsm.NewEntropySource(session),
		Mixer:    entropy.NewXORMixer(),
		Deriver:  deriver,
		Sealer:   sealer,
		Observer: observer,
	})
	require.NoError(t, err)

	res, err := initializer.Init(models.InitRequest{HostEntropy: host, Network: models.NetworkMainnet})
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, 1, driver.calls)

	gotSeed, err := sealer.Unseal(models.PurposeMasterSeed, res.EncryptedMasterSeed)
	require.NoError(t, err)
	assert.Equal(t, seed, gotSeed)

	gotXpub, err := sealer.Unseal(models.PurposePubKey, res.EncryptedPubKey)
	require.NoError(t, err)
	assert.Equal(t, vectorXpub, string(gotXpub))

	assert.Equal(t, []State{
		StateEntropyFetched, StateEntropyMixed, StateKeyDerived,
		StateSeedSealed, StateKeySealed, StateDone,
	}, observer.states())
}

func TestInit_ShortHardwareReply(t *testing.T) {
	driver := &fixedDriver{data: hardwareStub()[:63]}
	session := hsm.Open(driver, nil)
	defer session.Close()

	deriver := &fakeDeriver{}
	sealer := &fakeSealer{}
	observer := &recordingObserver{}
	initializer, err := NewInitializer(models.ModeProduction, Dependencies{
		Entropy:  hsm.NewEntropySource(session),
		Mixer:    entropy.NewXORMixer(),
		Deriver:  deriver,
		Sealer:   sealer,
		Observer: observer,
	})
	require.NoError(t, err)

	res, err := initializer.Init(productionRequest())
	require.Nil(t, res)
	require.ErrorIs(t, err, hsm.ErrUnexpectedLength)

	var lenErr *hsm.LengthError
	require.ErrorAs(t, err, &lenErr)
	assert.Equal(t, 64, lenErr.Want)
	assert.Equal(t, 63, lenErr.Got)

	assert.Zero(t, deriver.calls)
	assert.Zero(t, sealer.calls)
	assert.Equal(t, transition{StateStart, StateFailed, err}, observer.last())
}

func TestInit_StageFailures(t *testing.T) {
	injected := errors.New("injected")
	tests := []struct {
		name     string
		inject   func(f *fixture)
		failFrom State
		entropy  int
		mixes    int
		derives  int
		seals    int
	}{
		{
			name:     "entropy fetch",
			inject:   func(f *fixture) { f.entropy.err = injected },
			failFrom: StateStart,
			entropy:  1,
		},
		{
			name:     "mixing",
			inject:   func(f *fixture) { f.mixer.err = injected },
			failFrom: StateEntropyFetched,
			entropy:  1,
			mixes:    1,
		},
		{
			name:     "derivation",
			inject:   func(f *fixture) { f.deriver.err = injected },
			failFrom: StateEntropyMixed,
			entropy:  1,
			mixes:    1,
			derives:  1,
		},
		{
			name:     "seed sealing",
			inject:   func(f *fixture) { f.sealer.failOn, f.sealer.err = 1, injected },
			failFrom: StateKeyDerived,
			entropy:  1,
			mixes:    1,
			derives:  1,
			seals:    1,
		},
		{
			name:     "key sealing",
			inject:   func(f *fixture) { f.sealer.failOn, f.sealer.err = 2, injected },
			failFrom: StateSeedSealed,
			entropy:  1,
			mixes:    1,
			derives:  1,
			seals:    2,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			tt.inject(f)

			res, err := f.initializer.Init(productionRequest())
			require.Nil(t, res, "no partial envelopes")
			require.True(t, err == injected, "error must be returned unmodified, got %v", err)

			assert.Equal(t, tt.entropy, f.entropy.calls)
			assert.Equal(t, tt.mixes, f.mixer.calls)
			assert.Equal(t, tt.derives, f.deriver.calls)
			assert.Equal(t, tt.seals, f.sealer.calls)

			last := f.observer.last()
			assert.Equal(t, tt.failFrom, last.from)
			assert.Equal(t, StateFailed, last.to)
			assert.True(t, last.err == injected)
			for _, tr := range f.observer.transitions {
				assert.NotEqual(t, StateDone, tr.to)
			}
		})
	}
}

func TestInit_ComponentErrorKinds(t *testing.T) {
	tests := []struct {
		name   string
		inject func(f *fixture)
		want   error
	}{
		{"capacity", func(f *fixture) { f.entropy.err = hsm.ErrBufferTooLarge }, hsm.ErrBufferTooLarge},
		{"transport", func(f *fixture) { f.entropy.err = &hsm.TransportError{Err: errors.New("eof")} }, hsm.ErrTransactFailed},
		{"remote status", func(f *fixture) {
			f.entropy.err = &hsm.StatusError{Status: hsm.StatusHardwareFailed, Message: "hardware failure"}
		}, hsm.ErrTransactStatus},
		{"mixing", func(f *fixture) { f.mixer.err = entropy.ErrNoHostEntropy }, entropy.ErrNoHostEntropy},
		{"derivation", func(f *fixture) {
			f.deriver.err = &hdkey.DeriveError{Step: hdkey.StepDeriveChild, Err: errors.New("invalid child")}
		}, hdkey.ErrDeriveChild},
		{"sealing", func(f *fixture) {
			f.sealer.failOn, f.sealer.err = 2, &seal.SealError{Purpose: models.PurposePubKey, Err: errors.New("nonce")}
		}, seal.ErrSealFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			tt.inject(f)

			_, err := f.initializer.Init(productionRequest())
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestInit_SecondSealFailureDiscardsFirstEnvelope(t *testing.T) {
	f := newFixture(t)
	f.sealer.failOn, f.sealer.err = 2, errors.New("pubkey seal failed")

	res, err := f.initializer.Init(productionRequest())
	require.Error(t, err)
	assert.Nil(t, res)
	assert.Equal(t, []models.Purpose{models.PurposeMasterSeed, models.PurposePubKey}, f.sealer.purposes)
}

func TestInit_SeedWipedOnEveryPath(t *testing.T) {
	zero := make([]byte, 64)

	t.Run("success", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.initializer.Init(productionRequest())
		require.NoError(t, err)
		assert.Equal(t, zero, f.entropy.buf)
		assert.Equal(t, zero, f.sealer.plaintexts[0], "sealed seed buffer must be wiped")
		assert.Equal(t, make([]byte, len("xpub-fake")), f.sealer.plaintexts[1])
	})

	t.Run("derivation failure", func(t *testing.T) {
		f := newFixture(t)
		f.deriver.err = errors.New("boom")
		_, err := f.initializer.Init(productionRequest())
		require.Error(t, err)
		assert.Equal(t, zero, f.deriver.seeds[0])
	})

	t.Run("seal failure", func(t *testing.T) {
		f := newFixture(t)
		f.sealer.failOn, f.sealer.err = 2, errors.New("boom")
		_, err := f.initializer.Init(productionRequest())
		require.Error(t, err)
		assert.Equal(t, zero, f.sealer.plaintexts[0])
	})
}

func TestInit_SameSeedDerivedAndSealed(t *testing.T) {
	f := newFixture(t)

	res, err := f.initializer.Init(productionRequest())
	require.NoError(t, err)

	require.Len(t, f.deriver.seeds, 1)
	require.Len(t, f.sealer.plaintexts, 2)
	assert.Same(t, &f.deriver.seeds[0][0], &f.sealer.plaintexts[0][0])

	want := xorBytes(bytes.Repeat([]byte{0x3c}, 64), bytes.Repeat([]byte{0xa5}, 64))
	assert.Equal(t, want, res.EncryptedMasterSeed.Ciphertext)
	assert.Equal(t, []byte("xpub-fake"), res.EncryptedPubKey.Ciphertext)
}

func TestInit_UnknownNetwork(t *testing.T) {
	f := newFixture(t)
	req := productionRequest()
	req.Network = "signet"

	_, err := f.initializer.Init(req)
	require.ErrorIs(t, err, hdkey.ErrUnknownNetwork)
	assert.Zero(t, f.entropy.calls, "no hardware transaction for a bad request")
	assert.Equal(t, transition{StateStart, StateFailed, err}, f.observer.last())
}

func TestInit_ProductionRejectsShortHostEntropy(t *testing.T) {
	f := newFixture(t)
	req := productionRequest()
	req.HostEntropy = req.HostEntropy[:32]

	_, err := f.initializer.Init(req)
	require.ErrorIs(t, err, entropy.ErrEntropySize)
	assert.Zero(t, f.deriver.calls)
}

func TestInit_DevelopmentMode(t *testing.T) {
	hw := &fakeEntropy{fill: 0x00}
	deriver, err := hdkey.NewDeriver(nil, hdkey.CurveSecp256k1, MasterSeedBytes)
	require.NoError(t, err)
	sealer, err := seal.NewAEADSealer(bytes.Repeat([]byte{0x11}, seal.KeySize))
	require.NoError(t, err)
	observer := &recordingObserver{}
	var display bytes.Buffer

	initializer, err := NewInitializer(models.ModeDevelopment, Dependencies{
		Entropy:    hw,
		Mixer:      entropy.NewXORMixer(),
		Deriver:    deriver,
		Sealer:     sealer,
		Observer:   observer,
		DevDisplay: &display,
	})
	require.NoError(t, err)
	require.Equal(t, 32, initializer.EntropySize())

	res, err := initializer.Init(models.InitRequest{
		HostEntropy: make([]byte, 32),
		Network:     models.NetworkTestnet,
	})
	require.NoError(t, err)
	assert.Len(t, hw.buf, 32)

	mnemonic := strings.Repeat("abandon ", 23) + "art"
	assert.Contains(t, display.String(), mnemonic)

	wantSeed := bip39.NewSeed(mnemonic, "")
	gotSeed, err := sealer.Unseal(models.PurposeMasterSeed, res.EncryptedMasterSeed)
	require.NoError(t, err)
	assert.Equal(t, wantSeed, gotSeed)

	wantXpub, err := deriver.Derive(wantSeed, models.NetworkTestnet)
	require.NoError(t, err)
	gotXpub, err := sealer.Unseal(models.PurposePubKey, res.EncryptedPubKey)
	require.NoError(t, err)
	assert.Equal(t, wantXpub.Serialized, string(gotXpub))
	assert.True(t, strings.HasPrefix(string(gotXpub), "tpub"))

	assert.Equal(t, []State{
		StateEntropyFetched, StateEntropyMixed, StateMnemonicDerived, StateKeyDerived,
		StateSeedSealed, StateKeySealed, StateDone,
	}, observer.states())
}

func TestInit_ProductionNeverDisplaysMnemonic(t *testing.T) {
	var display bytes.Buffer
	initializer, err := NewInitializer(models.ModeProduction, Dependencies{
		Entropy:    &fakeEntropy{fill: 1},
		Mixer:      entropy.NewXORMixer(),
		Deriver:    &fakeDeriver{},
		Sealer:     &fakeSealer{},
		DevDisplay: &display,
	})
	require.NoError(t, err)

	_, err = initializer.Init(productionRequest())
	require.NoError(t, err)
	assert.Zero(t, display.Len())
}

func TestNewInitializer_Validation(t *testing.T) {
	_, err := NewInitializer(models.ModeProduction, Dependencies{})
	require.Error(t, err)

	_, err = NewInitializer(models.DeploymentMode(7), Dependencies{
		Entropy: &fakeEntropy{}, Mixer: &fakeMixer{}, Deriver: &fakeDeriver{}, Sealer: &fakeSealer{},
	})
	require.Error(t, err)

	short, err := hdkey.NewDeriver(nil, hdkey.CurveSecp256k1, 32)
	require.NoError(t, err)
	_, err = NewInitializer(models.ModeProduction, Dependencies{
		Entropy: &fakeEntropy{}, Mixer: &fakeMixer{}, Deriver: short, Sealer: &fakeSealer{},
	})
	require.Error(t, err)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "START", StateStart.String())
	assert.Equal(t, "KEY_SEALED", StateKeySealed.String())
	assert.Equal(t, "FAILED", StateFailed.String())
	assert.Equal(t, "State(42)", State(42).String())
	assert.True(t, StateDone.Terminal())
	assert.True(t, StateFailed.Terminal())
	assert.False(t, StateSeedSealed.Terminal())
}
