package routing

import (
	"fmt"
	"math/big"

	"swaprouter/internal/entities"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// SimulationStatus reports whether the cached route's calldata was simulated.
type SimulationStatus string

const (
	SimulationNotSupported SimulationStatus = "NOT_SUPPORTED"
	SimulationFailed       SimulationStatus = "FAILED"
	SimulationSucceeded    SimulationStatus = "SUCCESS"
	SimulationInsufficient SimulationStatus = "INSUFFICIENT_BALANCE"
	SimulationNotApproved  SimulationStatus = "NOT_APPROVED"
)

// SerializedToken carries token metadata. ChainID is only trusted on the trade's input currency.
type SerializedToken struct {
	ChainID  uint64 `json:"chainId,omitempty"`
	Address  string `json:"address"`
	Decimals uint8  `json:"decimals"`
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
}

// SerializedAmount is an exact rational amount of Currency.
type SerializedAmount struct {
	Currency    SerializedToken `json:"currency"`
	Numerator   string          `json:"numerator"`
	Denominator string          `json:"denominator"`
}

// SerializedPool is a pool snapshot within a route path.
type SerializedPool struct {
	Protocol     entities.Protocol `json:"protocol"`
	Address      string            `json:"address"`
	Token0       SerializedToken   `json:"token0"`
	Token1       SerializedToken   `json:"token1"`
	Fee          uint32            `json:"fee,omitempty"`
	SqrtPriceX96 string            `json:"sqrtPriceX96,omitempty"`
	Liquidity    string            `json:"liquidity,omitempty"`
	TickCurrent  int32             `json:"tickCurrent,omitempty"`
	Reserve0     string            `json:"reserve0,omitempty"`
	Reserve1     string            `json:"reserve1,omitempty"`
}

type SerializedPath struct {
	Pools     []SerializedPool  `json:"pools"`
	TokenPath []SerializedToken `json:"tokenPath"`
}

// SerializedRoute is one leg. The V3 lists are present for V3 and mixed legs only.
type SerializedRoute struct {
	Protocol                    entities.Protocol `json:"protocol"`
	Amount                      SerializedAmount  `json:"amount"`
	RawQuote                    string            `json:"rawQuote"`
	SqrtPriceX96AfterList       []string          `json:"sqrtPriceX96AfterList,omitempty"`
	InitializedTicksCrossedList []uint32          `json:"initializedTicksCrossedList,omitempty"`
	GasEstimate                 string            `json:"gasEstimate"`
	Percent                     int               `json:"percent"`
	Route                       SerializedPath    `json:"route"`
	QuoteToken                  SerializedToken   `json:"quoteToken"`
}

// SerializedSwapRoute is the cached form of a computed route.
type SerializedSwapRoute struct {
	CurrencyIn       SerializedToken            `json:"currencyIn"`
	CurrencyOut      SerializedToken            `json:"currencyOut"`
	TradeType        entities.TradeType         `json:"tradeType"`
	Quote            SerializedAmount           `json:"quote"`
	GasPriceWei      string                     `json:"gasPriceWei"`
	BlockNumber      uint64                     `json:"blockNumber"`
	Route            []SerializedRoute          `json:"route"`
	MethodParameters *entities.MethodParameters `json:"methodParameters,omitempty"`
	SimulationStatus SimulationStatus           `json:"simulationStatus,omitempty"`
	PortionAmount    *SerializedAmount          `json:"portionAmount,omitempty"`
}

// Serialize turns a swap route into its cached form.
func Serialize(r *SwapRoute) (*SerializedSwapRoute, error) {
	if r.Trade == nil {
		return nil, fmt.Errorf("swap route has no trade")
	}
	out := &SerializedSwapRoute{
		CurrencyIn:       encodeToken(r.Trade.InputAmount.Currency, true),
		CurrencyOut:      encodeToken(r.Trade.OutputAmount.Currency, true),
		TradeType:        r.Trade.TradeType,
		Quote:            encodeAmount(r.Quote),
		BlockNumber:      r.BlockNumber,
		SimulationStatus: r.SimulationStatus,
	}
	if r.GasPriceWei != nil {
		out.GasPriceWei = r.GasPriceWei.Dec()
	}
	if r.MethodParameters != nil {
		mp := *r.MethodParameters
		out.MethodParameters = &mp
	}
	if r.PortionAmount != nil {
		pa := encodeAmount(*r.PortionAmount)
		out.PortionAmount = &pa
	}

	for _, leg := range r.Route {
		s, err := encodeRoute(leg)
		if err != nil {
			return nil, err
		}
		out.Route = append(out.Route, s)
	}
	return out, nil
}

func encodeRoute(r RouteWithValidQuote) (SerializedRoute, error) {
	s := SerializedRoute{
		Protocol:    r.Protocol(),
		Amount:      encodeAmount(r.Amount()),
		RawQuote:    r.RawQuote().String(),
		GasEstimate: r.GasEstimate().Dec(),
		Percent:     r.Percent(),
		QuoteToken:  encodeToken(r.QuoteToken(), false),
	}

	var fields *V3Fields
	switch v := r.(type) {
	case *V3Route:
		fields = &v.V3Fields
	case *MixedRoute:
		fields = &v.V3Fields
	}
	if fields != nil {
		s.SqrtPriceX96AfterList = make([]string, len(fields.SqrtPriceX96AfterList))
		for i, p := range fields.SqrtPriceX96AfterList {
			s.SqrtPriceX96AfterList[i] = p.Dec()
		}
		s.InitializedTicksCrossedList = append([]uint32{}, fields.InitializedTicksCrossedList...)
	}

	path := r.Path()
	for _, t := range path.TokenPath {
		s.Route.TokenPath = append(s.Route.TokenPath, encodeToken(t, false))
	}
	for _, pool := range path.Pools {
		sp, err := encodePool(pool)
		if err != nil {
			return SerializedRoute{}, err
		}
		s.Route.Pools = append(s.Route.Pools, sp)
	}
	return s, nil
}

func encodePool(pool entities.Pool) (SerializedPool, error) {
	switch p := pool.(type) {
	case *entities.V3Pool:
		return SerializedPool{
			Protocol:     entities.ProtocolV3,
			Address:      p.Address().Hex(),
			Token0:       encodeToken(p.Token0(), false),
			Token1:       encodeToken(p.Token1(), false),
			Fee:          uint32(p.Fee()),
			SqrtPriceX96: p.SqrtPriceX96().Dec(),
			Liquidity:    p.Liquidity().Dec(),
			TickCurrent:  p.TickCurrent(),
		}, nil
	case *entities.V2Pool:
		return SerializedPool{
			Protocol: entities.ProtocolV2,
			Address:  p.Address().Hex(),
			Token0:   encodeToken(p.Token0(), false),
			Token1:   encodeToken(p.Token1(), false),
			Reserve0: p.Reserve0().Quotient().String(),
			Reserve1: p.Reserve1().Quotient().String(),
		}, nil
	default:
		return SerializedPool{}, fmt.Errorf("unsupported pool type %T", pool)
	}
}

func encodeToken(t entities.Token, withChain bool) SerializedToken {
	s := SerializedToken{
		Address:  t.Address.Hex(),
		Decimals: t.Decimals,
		Symbol:   t.Symbol,
		Name:     t.Name,
	}
	if withChain {
		s.ChainID = t.ChainID
	}
	return s
}

func encodeAmount(a entities.CurrencyAmount) SerializedAmount {
	return SerializedAmount{
		Currency:    encodeToken(a.Currency, true),
		Numerator:   a.Numerator.String(),
		Denominator: a.Denominator.String(),
	}
}

// decodeToken rebuilds a token on chainID, ignoring any chain id in the payload.
func decodeToken(s SerializedToken, chainID uint64) (entities.Token, error) {
	if !common.IsHexAddress(s.Address) {
		return entities.Token{}, fmt.Errorf("invalid token address %q", s.Address)
	}
	return entities.NewToken(chainID, common.HexToAddress(s.Address), s.Decimals, s.Symbol, s.Name), nil
}

func decodeAmount(s SerializedAmount, chainID uint64) (entities.CurrencyAmount, error) {
	token, err := decodeToken(s.Currency, chainID)
	if err != nil {
		return entities.CurrencyAmount{}, err
	}
	num, ok := new(big.Int).SetString(s.Numerator, 10)
	if !ok {
		return entities.CurrencyAmount{}, fmt.Errorf("invalid numerator %q", s.Numerator)
	}
	den, ok := new(big.Int).SetString(s.Denominator, 10)
	if !ok || den.Sign() == 0 {
		return entities.CurrencyAmount{}, fmt.Errorf("invalid denominator %q", s.Denominator)
	}
	return entities.FromFractionalAmount(token, num, den), nil
}

func decodeUint256(s, field string) (*uint256.Int, error) {
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, fmt.Errorf("invalid %s %q: %w", field, s, err)
	}
	return v, nil
}

func decodePool(s SerializedPool, chainID uint64) (entities.Pool, error) {
	t0, err := decodeToken(s.Token0, chainID)
	if err != nil {
		return nil, err
	}
	t1, err := decodeToken(s.Token1, chainID)
	if err != nil {
		return nil, err
	}
	addr := common.HexToAddress(s.Address)

	switch s.Protocol {
	case entities.ProtocolV3:
		sqrt, err := decodeUint256(s.SqrtPriceX96, "sqrtPriceX96")
		if err != nil {
			return nil, err
		}
		liquidity, err := decodeUint256(s.Liquidity, "liquidity")
		if err != nil {
			return nil, err
		}
		return entities.NewV3Pool(addr, t0, t1, entities.FeeAmount(s.Fee), sqrt, liquidity, s.TickCurrent)
	case entities.ProtocolV2:
		r0, err := decodeUint256(s.Reserve0, "reserve0")
		if err != nil {
			return nil, err
		}
		r1, err := decodeUint256(s.Reserve1, "reserve1")
		if err != nil {
			return nil, err
		}
		return entities.NewV2Pool(addr, entities.FromRawAmount(t0, r0), entities.FromRawAmount(t1, r1))
	default:
		return nil, fmt.Errorf("unsupported pool protocol %q", s.Protocol)
	}
}

func decodePath(s SerializedPath, protocol entities.Protocol, chainID uint64) (Path, error) {
	path := Path{Protocol: protocol}
	for _, t := range s.TokenPath {
		token, err := decodeToken(t, chainID)
		if err != nil {
			return Path{}, err
		}
		path.TokenPath = append(path.TokenPath, token)
	}
	for i, sp := range s.Pools {
		pool, err := decodePool(sp, chainID)
		if err != nil {
			return Path{}, fmt.Errorf("pool %d: %w", i, err)
		}
		path.Pools = append(path.Pools, pool)
	}
	return path, nil
}

func decodeV3Fields(s SerializedRoute) (V3Fields, error) {
	if s.SqrtPriceX96AfterList == nil || s.InitializedTicksCrossedList == nil {
		return V3Fields{}, ErrMissingV3Fields
	}
	f := V3Fields{
		SqrtPriceX96AfterList:       make([]*uint256.Int, len(s.SqrtPriceX96AfterList)),
		InitializedTicksCrossedList: append([]uint32{}, s.InitializedTicksCrossedList...),
	}
	for i, p := range s.SqrtPriceX96AfterList {
		v, err := decodeUint256(p, "sqrtPriceX96After")
		if err != nil {
			return V3Fields{}, err
		}
		f.SqrtPriceX96AfterList[i] = v
	}
	return f, nil
}
